package command

// root.go defines the root command for the robotctl application.
// set up the global flags here.

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	host     string        // robot server host
	taskPort int           // task channel port
	logPort  int           // log channel port
	apiURL   string        // status API base URL
	timeout  time.Duration // dial and reply timeout
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "robotctl",
	Short: "robotctl - robot bridge command line client",
	Long: `robotctl talks to a robot bridge server the same way a motion controller does.
User can use this application to:
- Send movement, IO and program-call commands over the task channel
- Stream the server log from the log channel
- Inspect sessions, queue and recent commands through the status API

The server only accepts task connections while a log client is attached, so keep
"robotctl tail" running in another terminal.

Use "robotctl command --help" or "robotctl command -h" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "robot server host")
	rootCmd.PersistentFlags().IntVar(&taskPort, "task-port", 30001, "task channel port")
	rootCmd.PersistentFlags().IntVar(&logPort, "log-port", 30002, "log channel port")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8084", "status API URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "dial and reply timeout")
}

func taskAddr() string { return net.JoinHostPort(host, strconv.Itoa(taskPort)) }

func logAddr() string { return net.JoinHostPort(host, strconv.Itoa(logPort)) }
