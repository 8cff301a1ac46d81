package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mstanton/daykeeper/internal/config"
	"github.com/mstanton/daykeeper/internal/database"
	"github.com/mstanton/daykeeper/internal/models"
)

// NewPlanCmd creates the plan command with show and seed subcommands.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage daily plans",
		Long:  "Show or seed the goal plan for a date.",
	}
	cmd.AddCommand(newPlanShowCmd())
	cmd.AddCommand(newPlanSeedCmd())
	return cmd
}

// planFile is the YAML shape accepted by 'plan seed'.
type planFile struct {
	Date  string `yaml:"date"`
	Goals []struct {
		Description      string  `yaml:"description"`
		Subject          string  `yaml:"subject"`
		Start            *string `yaml:"start"`
		End              *string `yaml:"end"`
		EstimatedMinutes *int    `yaml:"estimated_minutes"`
	} `yaml:"goals"`
}

func newPlanShowCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the plan for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().Format(models.PlanDateFormat)
			}
			repo, closeDB, err := openPlanRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			plan, err := repo.GetByDate(context.Background(), date)
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}
			if plan == nil || len(plan.Goals) == 0 {
				fmt.Printf("No plan stored for %s.\n", date)
				return nil
			}
			fmt.Printf("Plan for %s:\n", plan.Date)
			for _, g := range plan.SortedGoals() {
				slot := "unscheduled"
				if g.IsScheduled() {
					slot = fmt.Sprintf("%s-%s", g.ScheduledStart, g.ScheduledEnd)
				}
				fmt.Printf("  [%s] %-11s %s\n", g.Status, slot, g.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Plan date (YYYY-MM-DD), defaults to today")
	return cmd
}

func newPlanSeedCmd() *cobra.Command {
	var file string
	var replace bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a plan from a YAML file",
		Long:  "Load goals for a date from a YAML file. Existing goals are kept unless --replace is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read plan file: %w", err)
			}
			var pf planFile
			if err := yaml.Unmarshal(data, &pf); err != nil {
				return fmt.Errorf("parse plan file: %w", err)
			}
			if pf.Date == "" {
				pf.Date = time.Now().Format(models.PlanDateFormat)
			}
			if _, err := time.Parse(models.PlanDateFormat, pf.Date); err != nil {
				return fmt.Errorf("invalid date %q: %w", pf.Date, err)
			}

			repo, closeDB, err := openPlanRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := context.Background()
			plan, err := repo.GetByDate(ctx, pf.Date)
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}
			if plan == nil || replace {
				plan = &models.DailyPlan{Date: pf.Date}
			}

			for _, entry := range pf.Goals {
				goal := models.PlannedGoal{
					ID:               uuid.New(),
					Description:      entry.Description,
					Subject:          entry.Subject,
					EstimatedMinutes: entry.EstimatedMinutes,
					Status:           models.GoalStatusPending,
				}
				if entry.Start != nil {
					start, err := models.ParseTimeOfDay(*entry.Start)
					if err != nil {
						return fmt.Errorf("goal %q: %w", entry.Description, err)
					}
					goal.ScheduledStart = models.TimeOfDayPtr(start)
				}
				if entry.End != nil {
					end, err := models.ParseTimeOfDay(*entry.End)
					if err != nil {
						return fmt.Errorf("goal %q: %w", entry.Description, err)
					}
					goal.ScheduledEnd = models.TimeOfDayPtr(end)
				}
				plan.Goals = append(plan.Goals, goal)
			}

			if err := plan.Validate(); err != nil {
				return fmt.Errorf("plan invalid: %w", err)
			}
			if err := repo.Save(ctx, plan); err != nil {
				return fmt.Errorf("save plan: %w", err)
			}
			fmt.Printf("Seeded %d goals for %s.\n", len(pf.Goals), pf.Date)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML plan file (required)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace any existing goals for the date")
	return cmd
}

func openPlanRepo() (*database.PlanRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeDB := func() { _ = db.Close() }
	return database.NewPlanRepository(db), closeDB, nil
}
