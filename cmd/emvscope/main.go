// Copyright 2026 The magsp00f Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// emvscope is the research console for the contactless read, attack and
// emulation engines: read a card through a PN532 or PC/SC reader, persist
// the capture, evaluate attack profiles against it and print emulation
// response vectors.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	emv "github.com/magsp00f/go-emv"
	"github.com/magsp00f/go-emv/attack"
	"github.com/magsp00f/go-emv/emulate"
	"github.com/magsp00f/go-emv/profile"
	"github.com/magsp00f/go-emv/transport/pcsc"
	"github.com/magsp00f/go-emv/transport/uart"
)

var (
	flagDebug    bool
	flagDBPath   string
	flagSerial   string
	flagReader   string
	flagTerminal string
	flagLabel    string
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "emvscope",
		Short:         "Contactless card research console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flagDebug {
				emv.SetDebugEnabled(true)
			}
		},
	}
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug output")
	root.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBPath(), "card profile database path")

	root.AddCommand(newReadCmd(), newProfilesCmd(), newAttackCmd(), newEmulateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "emvscope.db"
	}
	return filepath.Join(home, ".emvscope", "profiles.db")
}

func openStore(ctx context.Context) (*profile.SQLiteStore, error) {
	if dir := filepath.Dir(flagDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
	}
	return profile.OpenSQLiteStore(ctx, flagDBPath)
}

func newTransport() (emv.Transport, error) {
	if flagSerial != "" {
		return uart.New(flagSerial)
	}
	return pcsc.New(flagReader)
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a contactless card and save the capture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var opts []emv.SessionOption
			if flagTerminal != "" {
				term, err := emv.LoadTerminalProfile(flagTerminal)
				if err != nil {
					return fmt.Errorf("load terminal profile: %w", err)
				}
				opts = append(opts, emv.WithCommandBuilder(emv.NewCommandBuilder(term, emv.NewTagDictionary())))
			}

			transport, err := newTransport()
			if err != nil {
				return err
			}

			session := emv.NewSession(transport, opts...)
			card, readErr := session.Read(ctx)
			if readErr != nil {
				fmt.Fprintf(os.Stderr, "read ended early: %v\n", readErr)
			}
			if card == nil {
				return readErr
			}
			printCard(card)

			if len(card.Tags) == 0 && card.PAN == "" {
				return readErr
			}

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p := profile.NewCardProfile(card, flagLabel)
			if err := store.Save(ctx, p); err != nil {
				return err
			}
			fmt.Printf("saved profile %s (%s)\n", p.ID, p.Label)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagSerial, "serial", "", "PN532 serial port (e.g. /dev/ttyUSB0)")
	cmd.Flags().StringVar(&flagReader, "reader", "", "PC/SC reader name substring (default: first reader)")
	cmd.Flags().StringVar(&flagTerminal, "terminal", "", "terminal profile YAML file")
	cmd.Flags().StringVar(&flagLabel, "label", "", "label for the saved profile")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print the full APDU exchange log")
	return cmd
}

func printCard(card *emv.CardData) {
	fmt.Printf("brand:      %s\n", card.Brand())
	if card.PAN != "" {
		fmt.Printf("pan:        %s\n", card.MaskedPAN())
	}
	if card.CardholderName != "" {
		fmt.Printf("cardholder: %s\n", card.CardholderName)
	}
	if card.ExpiryDate != "" {
		fmt.Printf("expiry:     %s\n", card.ExpiryDate)
	}
	if card.SelectedAID != "" {
		fmt.Printf("aid:        %s\n", card.SelectedAID)
	}
	if card.AIP != "" {
		fmt.Printf("aip:        %s\n", card.AIP)
	}
	fmt.Printf("tags:       %d\n", len(card.Tags))

	if flagVerbose {
		dict := emv.NewTagDictionary()
		for tag, value := range card.Tags {
			fmt.Printf("  %-6s %-40s %s\n", tag, dict.Name(tag), value)
		}
		fmt.Println("apdu log:")
		for _, e := range card.APDULog {
			fmt.Printf("  [%s] %s -> %s (%dms) %s\n",
				e.StatusWord, e.Command, e.Response, e.ExecutionTimeMs, e.Description)
		}
	}
}

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage saved card profiles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved card profiles",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			profiles, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println("no saved profiles")
				return nil
			}
			for _, p := range profiles {
				fmt.Printf("%s  %-24s  %s\n",
					p.ID, p.Label, p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved card profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:         %s\nlabel:      %s\n", p.ID, p.Label)
			printCard(p.Card)
			return nil
		},
	}
	show.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print all tags and the APDU log")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved card profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func newAttackCmd() *cobra.Command {
	var profileID string
	cmd := &cobra.Command{
		Use:   "attack <card-profile-id>",
		Short: "Evaluate attack profiles against a saved card",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			engine := attack.NewEngine()
			ids := engine.IDs()
			if profileID != "" {
				ids = []attack.ProfileID{attack.ProfileID(profileID)}
			}

			for _, id := range ids {
				result, err := engine.Execute(id, p.Card)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n", id)
				fmt.Printf("  %s\n", result)
				for k, v := range result.Derived {
					fmt.Printf("  %s: %s\n", k, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profileID, "profile", "", "run a single attack profile by id")
	return cmd
}

func newEmulateCmd() *cobra.Command {
	var workflowID string
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Print the emulation response vectors for a workflow",
		RunE: func(_ *cobra.Command, _ []string) error {
			var workflow emulate.Workflow
			for _, w := range emulate.Workflows() {
				if w.String() == workflowID {
					workflow = w
					break
				}
			}
			if !workflow.Valid() {
				return fmt.Errorf("%w: unknown workflow %q", emv.ErrInvalidParameter, workflowID)
			}

			responder := emulate.NewResponder(nil)
			if err := responder.SetWorkflow(workflow); err != nil {
				return err
			}

			fmt.Printf("workflow:   %s (%s)\n", workflow, workflow.Description())
			fmt.Printf("aip:        %s\n", emv.BytesToHex(workflow.AIP()))
			fmt.Printf("ttq:        %s\n", workflow.TTQ())
			fmt.Printf("cryptogram: %q\n", responder.GenerateCryptogram())
			fmt.Printf("ppse:       %s\n", emv.BytesToHex(responder.PPSEResponse()))
			fmt.Printf("fci:        %s\n", emv.BytesToHex(responder.AIDResponse(emv.AIDVisa)))
			fmt.Printf("gpo:        %s\n", emv.BytesToHex(responder.GPOResponse()))
			fmt.Printf("record:     %s\n", emv.BytesToHex(responder.RecordResponse(1, 1)))
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow", emulate.WorkflowMSDOnly.String(), "emulation workflow id")
	return cmd
}
