package cmd

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/audio"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/rx"
)

var decodeFlags = struct {
	raw  bool
	rate int
}{}

var decodeCmd = &cobra.Command{
	Use:   "decode [file|-]",
	Short: "decode the telegrams in a WAV file or a raw sample stream",
	Long: `Decode the telegrams in a WAV file or a raw sample stream.

The input must be mono audio at 15000 Hz. WAV files may contain 8 or 16 bit PCM or 32 bit float samples, raw
streams (--raw) signed 16 bit little endian samples. Without a file name or with "-", the input is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runWithCtx(runDecode),
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().BoolVar(&decodeFlags.raw, "raw", false, "the input contains raw signed 16 bit little endian samples")
	decodeCmd.Flags().IntVar(&decodeFlags.rate, "rate", fsk.SampleRate, "the sample rate of raw input in Hz")
}

func runDecode(ctx context.Context, env *environment, cmd *cobra.Command, args []string) {
	in, closeInput, err := openInput(args)
	if err != nil {
		log.Fatal(err)
	}
	defer closeInput()

	source, err := openSource(in, decodeFlags.raw, decodeFlags.rate)
	if err != nil {
		log.Fatal(err)
	}
	if source.SampleRate() != fsk.SampleRate {
		log.Fatalf("the sample rate must be %d Hz, got %d Hz", fsk.SampleRate, source.SampleRate())
	}

	reporter := append(rx.MultiReporter{rx.NewTextReporter(os.Stdout)}, env.reporter...)
	receiver := rx.NewReceiver(reporter, rx.WallClock, source.SampleRate(), 0)
	receiver.SetTracer(env.tracer())
	receiver.SetScope(env.scope)

	_, err = audio.Copy(ctx, receiver, source, audio.DefaultBufferSize)
	receiver.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}

	stats := receiver.Stats()
	log.Infof("%d samples, %d chips, %d telegrams", stats.Samples, stats.Chips, stats.Telegrams)
}

// openInput opens the file given as first argument, or stdin.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return bufio.NewReader(os.Stdin), func() {}, nil
	}
	file, err := os.Open(args[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot open %s", args[0])
	}
	return bufio.NewReader(file), func() { file.Close() }, nil
}

func openSource(in io.Reader, raw bool, rate int) (audio.Source, error) {
	if raw {
		return audio.NewRawSource(in, rate), nil
	}
	source, err := audio.OpenWAV(in)
	if err != nil {
		return nil, err
	}
	return source, nil
}
