// Command taskmasterctl is the operator client for taskmasterd's control
// socket.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cassian-io/taskmasterd/pkg/ctlclient"
)

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:   "taskmasterctl",
		Short: "Control client for taskmasterd",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to taskmasterd's control socket")

	for _, verb := range []string{"start", "stop", "restart", "status"} {
		root.AddCommand(targetedCommand(verb, &socketPath))
	}
	root.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Ask taskmasterd to re-read and apply its config file",
		RunE:  sendAndPrint("reload", &socketPath),
	})
	root.AddCommand(&cobra.Command{
		Use:   "shutdown",
		Short: "Stop every program and terminate taskmasterd",
		RunE:  sendAndPrint("shutdown", &socketPath),
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func targetedCommand(verb string, socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [name ...]",
		Short: fmt.Sprintf("%s one or more programs, or all if none given", verb),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctlclient.New(ctlclient.Config{SocketPath: *socketPath, Timeout: 5 * time.Second})
			reply, err := client.Send(verb, args...)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
}

func sendAndPrint(verb string, socketPath *string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client := ctlclient.New(ctlclient.Config{SocketPath: *socketPath, Timeout: 5 * time.Second})
		reply, err := client.Send(verb)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}
}

func defaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "taskmasterd.sock"
	}
	return filepath.Join(home, ".taskmasterd", "taskmasterd.sock")
}
