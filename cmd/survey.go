package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/audio"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/survey"
)

var surveyFlags = struct {
	raw       bool
	rate      int
	blockSize int
}{}

var surveyCmd = &cobra.Command{
	Use:   "survey [file|-]",
	Short: "find the tones of the FSK signal in a WAV file or a raw sample stream",
	Args:  cobra.MaximumNArgs(1),
	Run:   runWithCtx(runSurvey),
}

func init() {
	rootCmd.AddCommand(surveyCmd)

	surveyCmd.Flags().BoolVar(&surveyFlags.raw, "raw", false, "the input contains raw signed 16 bit little endian samples")
	surveyCmd.Flags().IntVar(&surveyFlags.rate, "rate", fsk.SampleRate, "the sample rate of raw input in Hz")
	surveyCmd.Flags().IntVar(&surveyFlags.blockSize, "block", survey.DefaultBlockSize, "the FFT block size")
}

func runSurvey(ctx context.Context, env *environment, cmd *cobra.Command, args []string) {
	in, closeInput, err := openInput(args)
	if err != nil {
		log.Fatal(err)
	}
	defer closeInput()

	source, err := openSource(in, surveyFlags.raw, surveyFlags.rate)
	if err != nil {
		log.Fatal(err)
	}

	s := survey.New(source.SampleRate(), surveyFlags.blockSize)
	s.SetScope(env.scope)
	_, err = audio.Copy(ctx, s, source, surveyFlags.blockSize)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}

	fmt.Print(s.Result())
}
