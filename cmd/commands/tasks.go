package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/bonsai-todo/bonsai/internal/config"
	"github.com/bonsai-todo/bonsai/internal/storage"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// openTaskService opens the local store for direct CLI access. No event bus:
// CLI invocations are one-shot.
func openTaskService(cmd *cli.Command) (*tasks.Service, func(), error) {
	cfg := loadConfig(cmd)
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = config.DatabasePath()
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return tasks.NewService(store, nil), func() { store.Close() }, nil
}

// NewAddCommand returns the add subcommand.
func NewAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a task",
		ArgsUsage: `"title"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "due",
				Usage: "Due date (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Task description",
			},
			&cli.IntFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Usage:   "Priority 1 (critical) to 5 (none)",
			},
			&cli.StringSliceFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "Tag the task (repeatable; missing tags are created)",
			},
			&cli.StringFlag{
				Name:  "repeat",
				Usage: "Recur after completion (daily, weekly, monthly, yearly)",
			},
		},
		Action: runAdd,
	}
}

func runAdd(_ context.Context, cmd *cli.Command) error {
	title := cmd.Args().First()
	if title == "" {
		return fmt.Errorf(`usage: bonsai add "title"`)
	}

	params := tasks.CreateParams{
		Title:       title,
		Description: cmd.String("description"),
		Priority:    int(cmd.Int("priority")),
		Tags:        cmd.StringSlice("tag"),
	}
	if repeat := cmd.String("repeat"); repeat != "" {
		params.Recurrence = &tasks.Recurrence{Frequency: tasks.Frequency(repeat)}
	}
	if dueStr := cmd.String("due"); dueStr != "" {
		due, err := time.Parse("2006-01-02", dueStr)
		if err != nil {
			return fmt.Errorf("invalid due date %q, want YYYY-MM-DD", dueStr)
		}
		params.Due = &due
	}

	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := svc.Create(cmd.String("user"), params)
	if err != nil {
		return err
	}

	fmt.Printf("Added %s: %s\n", t.ID, t.Title)
	return nil
}

// NewListCommand returns the list subcommand.
func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tasks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "Only pending tasks",
			},
			&cli.BoolFlag{
				Name:  "completed",
				Usage: "Only completed tasks",
			},
			&cli.StringFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "Only tasks carrying this tag",
			},
		},
		Action: runList,
	}
}

func runList(_ context.Context, cmd *cli.Command) error {
	filter := tasks.ListFilter{Status: tasks.StatusAll, Tag: cmd.String("tag")}
	if cmd.Bool("pending") {
		filter.Status = tasks.StatusPending
	}
	if cmd.Bool("completed") {
		filter.Status = tasks.StatusCompleted
	}

	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := svc.List(cmd.String("user"), filter)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRI\tDUE\tTAGS\tTITLE")
	for _, t := range list {
		status := "pending"
		if t.Done {
			status = "done"
		}
		due := "-"
		if t.Due != nil {
			due = t.Due.Format("2006-01-02")
		}
		tags := "-"
		if len(t.Tags) > 0 {
			tags = strings.Join(t.Tags, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", t.ID, status, t.Priority, due, tags, t.Title)
	}
	return w.Flush()
}

// NewCompleteCommand returns the complete subcommand.
func NewCompleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Mark a task as done",
		ArgsUsage: "<task_id>",
		Action:    runComplete,
	}
}

func runComplete(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: bonsai complete <task_id>")
	}

	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	t, alreadyDone, err := svc.Complete(cmd.String("user"), id)
	if err != nil {
		return err
	}
	if alreadyDone {
		fmt.Printf("'%s' was already completed.\n", t.Title)
		return nil
	}
	fmt.Printf("Completed: %s\n", t.Title)
	return nil
}

// NewUpdateCommand returns the update subcommand.
func NewUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change a task",
		ArgsUsage: "<task_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "title",
				Usage: "New title",
			},
			&cli.StringFlag{
				Name:  "due",
				Usage: "New due date (YYYY-MM-DD)",
			},
			&cli.IntFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Usage:   "New priority 1-5",
			},
		},
		Action: runUpdate,
	}
}

func runUpdate(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: bonsai update <task_id>")
	}

	var params tasks.UpdateParams
	if cmd.IsSet("title") {
		title := cmd.String("title")
		params.Title = &title
	}
	if cmd.IsSet("priority") {
		p := int(cmd.Int("priority"))
		params.Priority = &p
	}
	if dueStr := cmd.String("due"); dueStr != "" {
		due, err := time.Parse("2006-01-02", dueStr)
		if err != nil {
			return fmt.Errorf("invalid due date %q, want YYYY-MM-DD", dueStr)
		}
		params.Due = &due
	}

	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := svc.Update(cmd.String("user"), id, params)
	if err != nil {
		return err
	}
	fmt.Printf("Updated: %s\n", t.Title)
	return nil
}

// NewDeleteCommand returns the delete subcommand.
func NewDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a task",
		ArgsUsage: "<task_id>",
		Action:    runDelete,
	}
}

func runDelete(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: bonsai delete <task_id>")
	}

	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := svc.Delete(cmd.String("user"), id)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted: %s\n", t.Title)
	return nil
}

// NewTagsCommand returns the tags subcommand.
func NewTagsCommand() *cli.Command {
	return &cli.Command{
		Name:   "tags",
		Usage:  "List tags with task counts",
		Action: runTags,
	}
}

func runTags(_ context.Context, cmd *cli.Command) error {
	svc, closeStore, err := openTaskService(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := svc.ListTags(cmd.String("user"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No tags yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOLOR\tTASKS")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Color, t.TaskCount)
	}
	return w.Flush()
}
