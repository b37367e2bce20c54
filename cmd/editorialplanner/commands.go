package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"EditorialPlanner/internal/app"
	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/usecase"
)

func newRootCmd(application *app.Application) *cobra.Command {
	root := &cobra.Command{
		Use:           "editorialplanner",
		Short:         "Route editorial ideas through scoring and calendar allocation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(application),
		newAllocateCmd(application),
		newIntakeCmd(application),
		newRouteCmd(application),
		newScoreCmd(application),
		newKillCmd(application),
		newConfirmCmd(application),
		newPublishCmd(application),
		newUnscheduleCmd(application),
		newQueueCmd(application),
	)
	return root
}

func newRunCmd(application *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the recurring planning loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.Run(cmd.Context())
		},
	}
}

func newAllocateCmd(application *app.Application) *cobra.Command {
	var (
		pub   string
		start string
		days  int
	)
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Fill a publication's open slots from its evergreen queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate(start)
			if err != nil {
				return err
			}
			to := from.AddDate(0, 0, days-1)
			res, err := application.Engine().RunAllocator(cmd.Context(), pub, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slotted %d, reserved %d, unfilled %d, skipped %d\n",
				len(res.Slotted), len(res.Reserved), len(res.Unfilled), res.SkippedFilled)
			for _, r := range res.Slotted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s (%s)\n",
					r.IdeaID, r.CalendarDate.Format(time.DateOnly), r.SlotID)
			}
			if err := res.Err(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%v; score more ideas\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pub, "publication", "", "publication slug")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&days, "days", 7, "planning horizon in days")
	_ = cmd.MarkFlagRequired("publication")
	return cmd
}

func newIntakeCmd(application *app.Application) *cobra.Command {
	var (
		ideaID string
		attrs  usecase.IntakeAttributes
	)
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Register a routing record for an ingested idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.Engine().CreateIntake(cmd.Context(), ideaID, attrs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "routing %s created for idea %s\n", r.ID, r.IdeaID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ideaID, "idea", "", "idea identifier")
	cmd.Flags().BoolVar(&attrs.YouTubeVersion, "youtube", false, "idea also ships as a video cut")
	cmd.Flags().StringVar(&attrs.Audience, "audience", "", "target audience note for scoring")
	cmd.Flags().StringVar(&attrs.TimeSensitivity, "time-sensitivity", "", "time sensitivity note for scoring")
	cmd.Flags().StringVar(&attrs.Resource, "resource", "", "resource estimate note for scoring")
	cmd.Flags().StringVar(&attrs.EstimatedLength, "length", "", "estimated length note for scoring")
	cmd.Flags().BoolVar(&attrs.IsFoundational, "foundational", false, "idea is foundational content")
	cmd.Flags().BoolVar(&attrs.HasContrarianAngle, "contrarian", false, "idea has a contrarian angle")
	_ = cmd.MarkFlagRequired("idea")
	return cmd
}

func newRouteCmd(application *app.Application) *cobra.Command {
	var ideaID, pub string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route an idea to a publication",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.Engine().RouteIdea(cmd.Context(), ideaID, pub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s routed to %s\n", r.IdeaID, r.RoutedTo)
			return nil
		},
	}
	cmd.Flags().StringVar(&ideaID, "idea", "", "idea identifier")
	cmd.Flags().StringVar(&pub, "publication", "", "publication slug")
	_ = cmd.MarkFlagRequired("idea")
	_ = cmd.MarkFlagRequired("publication")
	return cmd
}

func newScoreCmd(application *app.Application) *cobra.Command {
	var (
		routingID string
		rawScores []string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Record dimension scores and enqueue the idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			scores, err := parseScores(rawScores)
			if err != nil {
				return err
			}
			r, err := application.Engine().ScoreIdea(cmd.Context(), routingID, scores)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s scored: tier %s, status %s\n", r.IdeaID, r.Tier, r.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&routingID, "routing", "", "idea routing identifier")
	cmd.Flags().StringArrayVar(&rawScores, "score", nil, "dimension score as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("routing")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func newKillCmd(application *app.Application) *cobra.Command {
	var routingID, reason string
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Kill an idea at any non-terminal stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.Engine().KillIdea(cmd.Context(), routingID, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s killed: %s\n", r.IdeaID, r.KillReason)
			return nil
		},
	}
	cmd.Flags().StringVar(&routingID, "routing", "", "idea routing identifier")
	cmd.Flags().StringVar(&reason, "reason", "", "why the idea is being killed")
	_ = cmd.MarkFlagRequired("routing")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newConfirmCmd(application *app.Application) *cobra.Command {
	var routingID string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a slotted idea as scheduled",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := application.Engine().ConfirmSchedule(cmd.Context(), routingID)
			return err
		},
	}
	cmd.Flags().StringVar(&routingID, "routing", "", "idea routing identifier")
	_ = cmd.MarkFlagRequired("routing")
	return cmd
}

func newPublishCmd(application *app.Application) *cobra.Command {
	var routingID string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Mark a scheduled idea as published",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := application.Engine().PublishIdea(cmd.Context(), routingID)
			return err
		},
	}
	cmd.Flags().StringVar(&routingID, "routing", "", "idea routing identifier")
	_ = cmd.MarkFlagRequired("routing")
	return cmd
}

func newUnscheduleCmd(application *app.Application) *cobra.Command {
	var routingID string
	cmd := &cobra.Command{
		Use:   "unschedule",
		Short: "Release an idea's calendar binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := application.Engine().Unschedule(cmd.Context(), routingID)
			return err
		},
	}
	cmd.Flags().StringVar(&routingID, "routing", "", "idea routing identifier")
	_ = cmd.MarkFlagRequired("routing")
	return cmd
}

func newQueueCmd(application *app.Application) *cobra.Command {
	var pub string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show a publication's evergreen queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := application.Engine().QueueHealth(cmd.Context(), pub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ideas queued, %d weeks of buffer, %d stale\n",
				h.PublicationSlug, h.QueueLength, h.WeeksOfBuffer, h.StaleCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&pub, "publication", "", "publication slug")
	_ = cmd.MarkFlagRequired("publication")
	return cmd
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

func parseScores(raw []string) (domain.ScoreSet, error) {
	scores := make(domain.ScoreSet, len(raw))
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid score %q, want name=value", pair)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score value in %q: %w", pair, err)
		}
		scores[name] = v
	}
	return scores, nil
}
