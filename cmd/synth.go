package cmd

import (
	"context"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/audio"
	"github.com/ftl/dcf39/synth"
	"github.com/ftl/dcf39/timecode"
)

var synthFlags = struct {
	payload   string
	number    int
	count     int
	interval  time.Duration
	amplitude float64
	noise     float64
	seed      int64
	out       string
}{}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "synthesize the audio of telegrams into a WAV file",
	Long: `Synthesize the audio of telegrams into a 15000 Hz mono WAV file.

Without --payload, date and time telegrams with the current local time are generated.`,
	Run: runWithCtx(runSynth),
}

func init() {
	rootCmd.AddCommand(synthCmd)

	synthCmd.Flags().StringVar(&synthFlags.payload, "payload", "", "the payload as hex string, e.g. 00001234")
	synthCmd.Flags().IntVar(&synthFlags.number, "number", 0, "the telegram number of generated date and time telegrams")
	synthCmd.Flags().IntVar(&synthFlags.count, "count", 1, "the number of telegrams")
	synthCmd.Flags().DurationVar(&synthFlags.interval, "interval", time.Second, "the time between two consecutive date and time telegrams")
	synthCmd.Flags().Float64Var(&synthFlags.amplitude, "amplitude", synth.DefaultConfig.Amplitude, "the amplitude of the tone")
	synthCmd.Flags().Float64Var(&synthFlags.noise, "noise", 0, "the standard deviation of additive gaussian noise")
	synthCmd.Flags().Int64Var(&synthFlags.seed, "seed", 1, "the seed of the noise generator")
	synthCmd.Flags().StringVar(&synthFlags.out, "out", "dcf39.wav", "the name of the WAV file")
}

func runSynth(ctx context.Context, env *environment, cmd *cobra.Command, args []string) {
	config := synth.DefaultConfig
	config.Amplitude = synthFlags.amplitude
	config.NoiseLevel = synthFlags.noise
	config.Seed = synthFlags.seed
	synthesizer := synth.New(config)

	now := time.Now()
	var samples []int16
	for i := 0; i < synthFlags.count; i++ {
		payload, err := synthPayload(now.Add(time.Duration(i) * synthFlags.interval))
		if err != nil {
			log.Fatal(err)
		}
		telegramSamples, err := synthesizer.Telegram(payload)
		if err != nil {
			log.Fatal(err)
		}
		samples = append(samples, telegramSamples...)
	}

	file, err := os.Create(synthFlags.out)
	if err != nil {
		log.Fatalf("cannot create %s: %v", synthFlags.out, err)
	}
	defer file.Close()
	err = audio.WriteWAV(file, config.SampleRate, samples)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("%d telegrams, %d samples written to %s", synthFlags.count, len(samples), synthFlags.out)
}

func synthPayload(t time.Time) ([]byte, error) {
	if synthFlags.payload != "" {
		return hex.DecodeString(strings.ReplaceAll(synthFlags.payload, " ", ""))
	}
	return timecode.FromTime(t).Payload(synthFlags.number)
}
