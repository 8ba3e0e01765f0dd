package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/divviup/divviup-console/internal/models"
)

func (a *app) taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := c.Tasks(cmd.Context(), id)
			if err != nil {
				return err
			}
			now := time.Now()
			return a.print(tasks, func(w io.Writer) error {
				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, []string{
						t.ID, t.Name, string(t.Vdaf.Type), string(t.QueryType()),
						string(t.ExpirationState(now)), formatTime(t.CreatedAt),
					})
				}
				return table(w, []string{"ID", "NAME", "VDAF", "QUERY TYPE", "EXPIRATION", "CREATED"}, rows)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			task, err := c.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printTask(*task)
		},
	}

	var file string
	create := &cobra.Command{
		Use:   "create --file <task.yaml>",
		Short: "Create a task from a JSON or YAML definition",
		Long: `Create a task in the current account from a JSON or YAML file with
the fields of a new task, for example:

  name: page views
  leader_aggregator_id: 0b8c...
  helper_aggregator_id: 6f1e...
  collector_credential_id: 9a2d...
  vdaf:
    type: histogram
    buckets: [10, 100, 1000]
  min_batch_size: 100
  time_precision_seconds: 3600

Use "-" to read the definition from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			newTask, err := readNewTask(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			task, err := unwrap(c.CreateTask(cmd.Context(), id, newTask))
			if err != nil {
				return err
			}
			return a.printTask(task)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "Task definition file")
	_ = create.MarkFlagRequired("file")

	rename := &cobra.Command{
		Use:   "rename <task-id> <name>",
		Short: "Rename a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			task, err := unwrap(c.RenameTask(cmd.Context(), args[0], args[1]))
			if err != nil {
				return err
			}
			return a.printTask(task)
		},
	}

	var force bool
	remove := &cobra.Command{
		Use:     "delete <task-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteTask(cmd.Context(), args[0], force); err != nil {
				return err
			}
			return a.deleted("task", args[0])
		},
	}
	remove.Flags().BoolVar(&force, "force", false, "Delete even if an aggregator does not acknowledge the expiration")

	authTokens := &cobra.Command{
		Use:   "collector-auth-tokens <task-id>",
		Short: "Show the tokens a collector authenticates to the leader with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			tokens, err := c.CollectorAuthTokens(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(tokens, func(w io.Writer) error {
				for _, token := range tokens {
					if _, err := fmt.Fprintln(w, token.Header()); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, create, rename, a.taskExpirationCmd(), remove, authTokens)
	return cmd
}

func (a *app) taskExpirationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expiration",
		Short: "Change when a task stops accepting reports",
	}

	setExpiration := func(cmd *cobra.Command, id string, at *time.Time) error {
		c, err := a.client()
		if err != nil {
			return err
		}
		task, err := unwrap(c.SetTaskExpiration(cmd.Context(), id, at))
		if err != nil {
			return err
		}
		return a.printTask(task)
	}

	set := &cobra.Command{
		Use:   "set <task-id> <RFC3339 time>",
		Short: "Expire a task at the given time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("invalid expiration %q, expected RFC 3339 like 2025-01-02T15:04:05Z", args[1])
			}
			return setExpiration(cmd, args[0], &at)
		},
	}

	now := &cobra.Command{
		Use:     "now <task-id>",
		Aliases: []string{"disable"},
		Short:   "Expire a task immediately",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC().Truncate(time.Second)
			return setExpiration(cmd, args[0], &at)
		},
	}

	clearExpiration := &cobra.Command{
		Use:     "clear <task-id>",
		Aliases: []string{"enable"},
		Short:   "Remove a task's expiration",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setExpiration(cmd, args[0], nil)
		},
	}

	cmd.AddCommand(set, now, clearExpiration)
	return cmd
}

func (a *app) printTask(task models.Task) error {
	return a.print(task, func(w io.Writer) error {
		maxBatch := "-"
		if task.MaxBatchSize != nil {
			maxBatch = strconv.FormatUint(*task.MaxBatchSize, 10)
		}
		return fields(w,
			"ID", task.ID,
			"Name", task.Name,
			"VDAF", string(task.Vdaf.Type),
			"Query type", string(task.QueryType()),
			"Min batch size", strconv.FormatUint(task.MinBatchSize, 10),
			"Max batch size", maxBatch,
			"Time precision", (time.Duration(task.TimePrecisionSeconds) * time.Second).String(),
			"Leader", task.LeaderAggregatorID.String(),
			"Helper", task.HelperAggregatorID.String(),
			"Collector credential", task.CollectorCredentialID.String(),
			"Expiration", formatOptionalTime(task.Expiration),
			"Created", formatTime(task.CreatedAt),
			"Deleted", formatOptionalTime(task.DeletedAt),
		)
	})
}

// readNewTask reads a task definition. YAML is accepted by converting it to
// JSON, so both formats use the JSON field names.
func readNewTask(stdin io.Reader, path string) (models.NewTask, error) {
	var task models.NewTask

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return task, fmt.Errorf("failed to read task definition: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" || (len(trimmed) > 0 && trimmed[0] != '{') {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return task, fmt.Errorf("failed to parse task definition: %w", err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return task, fmt.Errorf("failed to convert task definition: %w", err)
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&task); err != nil {
		return task, fmt.Errorf("invalid task definition: %w", err)
	}
	return task, nil
}
