package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/guid"
)

// GUIDInfo is the decoded form of a GUID.
type GUIDInfo struct {
	GUID       string `json:"guid"`
	ObjectType string `json:"objectType"`
	Tenant     int    `json:"tenant"`
	Platform   uint32 `json:"platform"`
	PID        uint32 `json:"pid"`
	Time       string `json:"time"`
	Counter    uint32 `json:"counter"`
}

func inspect(g guid.GUID) GUIDInfo {
	return GUIDInfo{
		GUID:       g.String(),
		ObjectType: g.ObjectType().String(),
		Tenant:     g.Tenant(),
		Platform:   g.Platform(),
		PID:        g.PID(),
		Time:       g.Time().Format(time.RFC3339Nano),
		Counter:    g.Counter(),
	}
}

// NewGUIDCommand creates the guid command group.
func NewGUIDCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guid",
		Short: "Generate and decode ledger identifiers",
	}
	cmd.AddCommand(newGUIDNewCommand(rootOpts))
	cmd.AddCommand(newGUIDInspectCommand(rootOpts))
	return cmd
}

func newGUIDNewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "new <operation|unit|objectgroup|object|event>",
		Short:         "Generate a GUID for the tenant and the configured platform",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			objectType, err := guid.ParseObjectType(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid object type", err)
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			g := guid.NewGenerator(cfg.Ledger.Platform).New(objectType, rootOpts.Tenant)

			f := newFormatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(inspect(g))
			}
			fmt.Fprintln(f.Writer, g.String())
			return nil
		},
	}
}

func newGUIDInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect <guid>",
		Short:         "Decode a GUID",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			g, err := guid.Parse(args[0])
			if err != nil {
				_ = f.Error(CodeCommandError, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid guid", err)
			}
			info := inspect(g)
			if f.Format == "json" {
				return f.Success(info)
			}
			fmt.Fprintf(f.Writer, "type:     %s\n", info.ObjectType)
			fmt.Fprintf(f.Writer, "tenant:   %d\n", info.Tenant)
			fmt.Fprintf(f.Writer, "platform: %d\n", info.Platform)
			fmt.Fprintf(f.Writer, "pid:      %d\n", info.PID)
			fmt.Fprintf(f.Writer, "time:     %s\n", info.Time)
			fmt.Fprintf(f.Writer, "counter:  %d\n", info.Counter)
			return nil
		},
	}
}
