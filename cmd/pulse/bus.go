package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/bus"
)

func newBusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bus",
		Short: "Raw mailbox operations",
	}

	cmd.AddCommand(newBusPublishCmd())
	cmd.AddCommand(newBusConsumeCmd())
	cmd.AddCommand(newBusPeekCmd())
	cmd.AddCommand(newBusStatsCmd())
	return cmd
}

func partitionFlag(name string) (bus.Partition, error) {
	switch name {
	case "inbox":
		return bus.Inbox, nil
	case "outbox":
		return bus.Outbox, nil
	case "reviews":
		return bus.Reviews, nil
	default:
		return "", fmt.Errorf("unknown partition %q (inbox, outbox, reviews)", name)
	}
}

func newBusPublishCmd() *cobra.Command {
	var (
		configPath string
		partition  string
		from       string
		to         string
		msgType    string
		topic      string
		thread     string
		p2p        bool
		approval   bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message to a partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := partitionFlag(partition)
			if err != nil {
				return err
			}
			_, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			msg := bus.Message{
				From: from, To: to, Type: msgType,
				Topic: topic, Thread: thread,
				P2P: p2p, RequiresApproval: approval,
			}
			loc, err := store.Publish(p, &msg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s\n", msg.ID, loc)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&partition, "partition", "inbox", "target partition (inbox, outbox, reviews)")
	cmd.Flags().StringVar(&from, "from", "", "sender identity (required)")
	cmd.Flags().StringVar(&to, "to", "", "recipient identity or * (required)")
	cmd.Flags().StringVar(&msgType, "type", bus.TypeCollect, "message type (collect, result)")
	cmd.Flags().StringVar(&topic, "topic", "", "correlation topic")
	cmd.Flags().StringVar(&thread, "thread", "", "correlation thread")
	cmd.Flags().BoolVar(&p2p, "p2p", false, "mark as peer-to-peer")
	cmd.Flags().BoolVar(&approval, "requires-approval", false, "require manager approval")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newBusConsumeCmd() *cobra.Command {
	var (
		configPath string
		partition  string
		recipient  string
		keep       bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume messages addressed to a recipient",
		Long:  "Claims and removes messages addressed to the recipient (or the wildcard). Use --keep for a non-destructive peek.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := partitionFlag(partition)
			if err != nil {
				return err
			}
			_, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			msgs, err := store.Consume(p, recipient, bus.ConsumeOpts{Keep: keep, Limit: limit})
			if err != nil {
				return err
			}

			printMessages(cmd, p, recipient, msgs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&partition, "partition", "inbox", "partition to consume from")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient identity (required)")
	cmd.Flags().BoolVar(&keep, "keep", false, "peek without removing")
	cmd.Flags().IntVar(&limit, "limit", 0, "max messages (0 = all)")
	cmd.MarkFlagRequired("recipient")
	return cmd
}

func newBusPeekCmd() *cobra.Command {
	var (
		configPath string
		partition  string
		recipient  string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "peek",
		Short: "List messages for a recipient without removing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := partitionFlag(partition)
			if err != nil {
				return err
			}
			_, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			msgs, err := store.Consume(p, recipient, bus.ConsumeOpts{Keep: true, Limit: limit})
			if err != nil {
				return err
			}
			printMessages(cmd, p, recipient, msgs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&partition, "partition", "inbox", "partition to peek at")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient identity (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max messages (0 = all)")
	cmd.MarkFlagRequired("recipient")
	return cmd
}

func printMessages(cmd *cobra.Command, p bus.Partition, recipient string, msgs []bus.Message) {
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "No messages for %s in %s\n", recipient, p)
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tTYPE\tTOPIC\tTS")
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.From, m.To, m.Type, m.Topic, m.TS)
	}
	w.Flush()
}

func newBusStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show pending message counts per partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION\tPENDING")
			fmt.Fprintf(w, "inbox\t%d\n", st.Inbox)
			fmt.Fprintf(w, "outbox\t%d\n", st.Outbox)
			fmt.Fprintf(w, "reviews\t%d\n", st.Reviews)
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}
