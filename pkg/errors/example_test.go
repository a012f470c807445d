package errors_test

import (
	"fmt"
	"io"

	"github.com/knime/knime-dl4j-sub000/pkg/errors"
)

// Example demonstrates basic error creation with row context.
func Example() {
	err := errors.New(errors.ErrorTypeLengthMismatch, "feature vector length differs from reference").
		WithDetail(errors.DetailRowKey, "Row7").
		WithDetail(errors.DetailExpected, 4).
		WithDetail(errors.DetailActual, 3)

	fmt.Println(err.Error())
	key, _ := errors.RowKey(err)
	fmt.Println(key)

	// Output:
	// length_mismatch: feature vector length differs from reference
	// Row7
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeFile, "failed to read CSV file").
		WithDetail("file", "data.csv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a file error
	// Original error was unexpected EOF
}

// ExampleErrorType demonstrates the conversion error taxonomy.
func ExampleErrorType() {
	missing := errors.New(errors.ErrorTypeMissingValue, "cell is missing")
	fmt.Printf("%v\n", missing)

	unsupported := errors.Newf(errors.ErrorTypeUnsupportedType, "no converter from %s to %s", "string", "double")
	fmt.Printf("%v\n", unsupported)

	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// missing_value: cell is missing
	// unsupported_type: no converter from string to double
	// internal
}
