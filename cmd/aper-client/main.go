package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamsocket/aper/pkg/log"
	"github.com/jamsocket/aper/pkg/notify"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/tasklist"
	"github.com/jamsocket/aper/transport/duplex"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aper-client",
	Short:   "Aper client - edit a synchronized task list",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("server", "localhost:7480", "Server address")
	rootCmd.PersistentFlags().String("client-id", "", "Client identity (generated if empty)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// dial connects, bootstraps, and starts the read loop.
func dial(cmd *cobra.Command) (*duplex.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	clientID, _ := cmd.Flags().GetString("client-id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	c, err := duplex.Dial(addr, clientID, tasklist.Apply)
	if err != nil {
		return nil, err
	}
	c.SetLogger(log.WithSessionID(clientID))
	if err := c.Connect(); err != nil {
		c.Close()
		return nil, err
	}
	go func() { _ = c.Run() }()
	return c, nil
}

// submitAndWait sends one intent and blocks until the server acks or
// rejects it.
func submitAndWait(c *duplex.Client, intent tasklist.Intent) error {
	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	if _, err := c.Submit(intent.Encode()); err != nil {
		return err
	}
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-sub:
			switch ev.Type {
			case notify.EventIntentAcked:
				return nil
			case notify.EventIntentRejected, notify.EventIntentRetracted:
				return fmt.Errorf("server refused the change (%s)", ev.Metadata["reason"])
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for server acknowledgement")
		}
	}
}

func printList(c *duplex.Client) {
	c.Read(func(h overlay.Handle) {
		l := tasklist.Attach(h)
		if title := l.Title.Get(); title != "" {
			fmt.Printf("%s\n", title)
		}
		view := l.View()
		if len(view) == 0 {
			fmt.Println("(no tasks)")
			return
		}
		for _, task := range view {
			mark := " "
			if task.Done {
				mark = "x"
			}
			fmt.Printf("[%s] %s  %s\n", mark, task.ID, task.Name)
		}
		fmt.Printf("%d completed all-time\n", l.CompletedTotal.Get())
	})
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the current task list",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		printList(c)
		return nil
	},
}

var titleCmd = &cobra.Command{
	Use:   "title <text>",
	Short: "Set the list title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return submitAndWait(c, tasklist.Intent{Kind: tasklist.KindSetTitle, Name: args[0]})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetBool("top")
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		intent := tasklist.Intent{Kind: tasklist.KindCreate, TaskID: uuid.NewString(), Name: args[0]}
		if top {
			intent.Place = tasklist.PlaceTop
		}
		if err := submitAndWait(c, intent); err != nil {
			return err
		}
		fmt.Printf("added %s\n", intent.TaskID)
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return submitAndWait(c, tasklist.Intent{Kind: tasklist.KindSetDone, TaskID: args[0], Done: !undo})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <task-id> <name>",
	Short: "Rename a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return submitAndWait(c, tasklist.Intent{Kind: tasklist.KindRename, TaskID: args[0], Name: args[1]})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every completed task",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return submitAndWait(c, tasklist.Intent{Kind: tasklist.KindRemoveCompleted})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and print the list whenever it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		printList(c)
		last := c.Version()
		for {
			time.Sleep(250 * time.Millisecond)
			if v := c.Version(); v != last {
				last = v
				fmt.Printf("\n-- version %d --\n", v)
				printList(c)
			}
		}
	},
}

func init() {
	addCmd.Flags().Bool("top", false, "Insert at the top of the list instead of the end")
	doneCmd.Flags().Bool("undo", false, "Mark the task not completed instead")
}
