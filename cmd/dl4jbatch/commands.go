package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/internal/pipeline"
	"github.com/knime/knime-dl4j-sub000/pkg/convert"
	"github.com/knime/knime-dl4j-sub000/pkg/iterator"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/ndarray"
)

// inspection is the JSON document printed by inspect.
type inspection struct {
	Name          string       `json:"name"`
	Format        string       `json:"format"`
	TotalExamples int64        `json:"total_examples"`
	InputLength   int          `json:"input_length"`
	OutputLength  int          `json:"output_length"`
	BatchSize     int          `json:"batch_size"`
	Labels        []string     `json:"labels,omitempty"`
	Columns       []columnInfo `json:"columns"`
}

type columnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func newInspectCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the table schema and the shape of the batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(_ context.Context, _ *env, s *pipeline.Session) error {
				it := s.Iterator
				out := inspection{
					Name:          s.Config.Name,
					Format:        s.Config.Table.Format,
					TotalExamples: it.TotalExamples(),
					InputLength:   it.InputLength(),
					OutputLength:  it.OutputLength(),
					BatchSize:     it.BatchSize(),
					Labels:        it.Labels(),
				}
				for _, col := range s.Table.Schema().Columns {
					out.Columns = append(out.Columns, columnInfo{Name: col.Name, Type: col.Type.String()})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
}

func newDrainCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Produce every batch for the configured number of epochs",
		Long: `Drain runs the iterator to exhaustion once per epoch, resetting it in
between, and reports per-epoch throughput. Batches are discarded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, e *env, s *pipeline.Session) error {
				stats, err := s.Run(ctx, nil)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "EPOCH\tBATCHES\tEXAMPLES\tSKIPPED\tDURATION\tEXAMPLES/S")
				for _, es := range stats.Epochs {
					fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%.1f\n",
						es.Epoch, es.Batches, es.Examples, es.Skipped, es.Duration, es.Throughput)
				}
				if ferr := w.Flush(); err == nil {
					err = ferr
				}
				if err != nil {
					return err
				}
				e.log.Info("drain completed",
					zap.Int("examples", stats.Examples()),
					zap.Duration("duration", stats.Duration))
				return nil
			})
		},
	}
	addEpochsFlag(v, cmd)
	return cmd
}

// addEpochsFlag binds --epochs when the command runs, since drain and export
// share the viper key.
func addEpochsFlag(v *viper.Viper, cmd *cobra.Command) {
	cmd.Flags().Int("epochs", 0, "Number of passes, overrides iterator.epochs")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return v.BindPFlag("epochs", cmd.Flags().Lookup("epochs"))
	}
}

// exportLine is one batch in the JSON lines export.
type exportLine struct {
	Epoch    int         `json:"epoch"`
	Keys     []string    `json:"keys"`
	Features [][]float64 `json:"features"`
	Targets  [][]float64 `json:"targets"`
	Skipped  []string    `json:"skipped,omitempty"`
}

func newExportCommand(v *viper.Viper) *cobra.Command {
	var output, arrowDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every batch as a JSON line",
		Long: `Export writes one JSON object per batch with the row keys, the feature
rows and the target rows. With --arrow-dir the feature and target matrices
are also written as Arrow IPC files (features.arrow, targets.arrow) with one
record batch per produced batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, e *env, s *pipeline.Session) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				bw := bufio.NewWriter(w)
				enc := json.NewEncoder(bw)

				var ax *arrowExport
				if arrowDir != "" {
					var err error
					ax, err = newArrowExport(arrowDir, s.Iterator.InputLength(), s.Iterator.OutputLength())
					if err != nil {
						return err
					}
				}

				stats, err := s.Run(ctx, func(_ context.Context, epoch int, b *iterator.Batch) error {
					line := exportLine{
						Epoch:    epoch,
						Keys:     b.Keys,
						Features: b.Features.ToRows(),
						Targets:  b.Targets.ToRows(),
					}
					for _, f := range b.Failures {
						line.Skipped = append(line.Skipped, f.Key)
					}
					if err := enc.Encode(line); err != nil {
						return err
					}
					if ax != nil {
						return ax.write(b)
					}
					return nil
				})
				if ferr := bw.Flush(); err == nil {
					err = ferr
				}
				if ax != nil {
					if cerr := ax.close(); err == nil {
						err = cerr
					}
				}
				if err != nil {
					return err
				}
				e.log.Info("export completed",
					zap.Int("examples", stats.Examples()),
					zap.String("output", output),
					zap.String("arrow_dir", arrowDir))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "JSON lines output file, stdout when empty")
	cmd.Flags().StringVar(&arrowDir, "arrow-dir", "", "Also write features.arrow and targets.arrow to this directory")
	addEpochsFlag(v, cmd)
	return cmd
}

// arrowExport writes feature and target matrices to two Arrow IPC files.
type arrowExport struct {
	mem      memory.Allocator
	files    []*os.File
	features *ipc.FileWriter
	targets  *ipc.FileWriter
}

func newArrowExport(dir string, inputs, outputs int) (*arrowExport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ax := &arrowExport{mem: memory.NewGoAllocator()}

	open := func(name, prefix string, cols int) (*ipc.FileWriter, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		ax.files = append(ax.files, f)
		return ipc.NewFileWriter(f, ipc.WithSchema(ndarray.ArrowSchema(prefix, cols)), ipc.WithAllocator(ax.mem))
	}

	var err error
	if ax.features, err = open("features.arrow", "f", inputs); err != nil {
		ax.close()
		return nil, err
	}
	if ax.targets, err = open("targets.arrow", "t", outputs); err != nil {
		ax.close()
		return nil, err
	}
	return ax, nil
}

func (ax *arrowExport) write(b *iterator.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	for _, pair := range []struct {
		w      *ipc.FileWriter
		m      *ndarray.Matrix
		prefix string
	}{
		{ax.features, b.Features, "f"},
		{ax.targets, b.Targets, "t"},
	} {
		rec := pair.m.ToRecord(ax.mem, pair.prefix)
		err := pair.w.Write(rec)
		rec.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func (ax *arrowExport) close() error {
	var first error
	for _, w := range []*ipc.FileWriter{ax.features, ax.targets} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range ax.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newConvertersCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "converters",
		Short: "List the registered converters in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := v.GetString("log-level")
			if level == "" {
				level = "warn"
			}
			if err := logger.Init(logger.Config{Level: level, Encoding: "console"}); err != nil {
				return err
			}
			reg := convert.Init(logger.Get(), convert.Builtin())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tSOURCE\tDESTINATION\tPRIORITY")
			for _, c := range reg.Converters() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					c.Identifier(), c.SourceType(), c.DestinationType(), c.Priority())
			}
			return w.Flush()
		},
	}
}
