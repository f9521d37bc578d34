package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"animatic/internal/backend"
	"animatic/pkg/types"
)

func newRendersCommand(configFlag *string) *cobra.Command {
	rendersCmd := &cobra.Command{
		Use:   "renders",
		Short: "Inspect and edit render artifacts of the running instance",
	}
	rendersCmd.AddCommand(newRendersListCommand(configFlag))
	rendersCmd.AddCommand(newRendersRenameCommand(configFlag))
	rendersCmd.AddCommand(newRendersRmCommand(configFlag))
	rendersCmd.AddCommand(newRendersStitchCommand(configFlag))
	return rendersCmd
}

// backendClient locates the running backend through the bridge.
func backendClient(configFlag *string) (*backend.Client, error) {
	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	httpClient := &http.Client{Timeout: 3 * time.Second}
	resp, err := httpClient.Get("http://" + cfg.BridgeAddr + "/backend")
	if err != nil {
		return nil, fmt.Errorf("no animatic instance reachable at %s (is 'animatic run' active?)", cfg.BridgeAddr)
	}
	defer resp.Body.Close()
	var info types.BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}
	if info.State != "healthy" || info.Port <= 0 {
		return nil, fmt.Errorf("backend is not healthy (state: %s)", info.State)
	}
	return backend.New(fmt.Sprintf("http://127.0.0.1:%d", info.Port)), nil
}

func newRendersListCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List render artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backendClient(configFlag)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			list, err := client.ListRenders(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no renders")
				return nil
			}
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				for _, rd := range list {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
						rd.ID, rd.Name, rd.Quality.Label(), formatCreated(rd.CreatedAt))
				}
				return nil
			}
			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"ID", "Name", "Quality", "Created"})
			for _, rd := range list {
				tw.AppendRow(table.Row{rd.ID, rd.Name, rd.Quality.Label(), formatCreated(rd.CreatedAt)})
			}
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
			})
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}
}

func formatCreated(created string) string {
	if created == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return created
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func newRendersRenameCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a render artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backendClient(configFlag)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := client.RenameRender(ctx, args[0], args[1]); err != nil {
				if backend.IsNotFound(err) {
					return fmt.Errorf("no render with id %s", args[0])
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "renamed")
			return nil
		},
	}
}

func newRendersRmCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a render artifact and its video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backendClient(configFlag)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := client.DeleteRender(ctx, args[0]); err != nil {
				if backend.IsNotFound(err) {
					return fmt.Errorf("no render with id %s", args[0])
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func newRendersStitchCommand(configFlag *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "stitch <id> <id> [id...]",
		Short: "Concatenate renders, in the given order, into a new one",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backendClient(configFlag)
			if err != nil {
				return err
			}
			// Stitching re-encodes video, give it time.
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			res, err := client.Stitch(ctx, args, name)
			if err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("stitch failed: %s", res.Log)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stitched into %s (%s)\n", res.RenderID, res.RenderName)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the stitched render")
	return cmd
}
