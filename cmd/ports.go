package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/relay"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "list the serial ports that can be used with --serial",
	Args:  cobra.NoArgs,
	Run:   runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) {
	ports, err := relay.Ports()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return
	}
	for _, port := range ports {
		fmt.Println(port)
	}
}
