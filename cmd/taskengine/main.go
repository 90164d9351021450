package main

import (
	"log"
	"os"

	"github.com/VanDung-dev/TaskDrain-Engine/config"
	"github.com/urfave/cli/v2"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "taskengine"
)

func newApp() *cli.App {
	defaults := config.DefaultConfig()

	return &cli.App{
		Name:    Name,
		Usage:   "drain a task queue with a fixed pool of workers",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   defaults.Workers,
				Usage:   "number of worker goroutines",
				EnvVars: []string{"TASKENGINE_WORKERS"},
			},
			&cli.StringFlag{
				Name:    "name",
				Value:   defaults.PoolName,
				Usage:   "pool name reported in stats",
				EnvVars: []string{"TASKENGINE_POOL_NAME"},
			},
			&cli.StringFlag{
				Name:    "time-layout",
				Value:   defaults.TimeLayout,
				Usage:   "Go time layout for log timestamps",
				EnvVars: []string{"TASKENGINE_TIME_LAYOUT"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "do not print lifecycle lines to stdout",
				EnvVars: []string{"TASKENGINE_QUIET"},
			},
			&cli.BoolFlag{
				Name:    "json-log",
				Usage:   "mirror lifecycle lines to stderr as JSON",
				EnvVars: []string{"TASKENGINE_JSON_LOG"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve Prometheus metrics on this address",
				EnvVars: []string{"TASKENGINE_METRICS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "health-addr",
				Usage:   "serve gRPC health checks on this address",
				EnvVars: []string{"TASKENGINE_HEALTH_ADDR"},
			},
			&cli.StringFlag{
				Name:    "zmq-endpoint",
				Usage:   "ship log lines to a ZeroMQ collector (e.g. tcp://127.0.0.1:5557)",
				EnvVars: []string{"TASKENGINE_ZMQ_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "node-id",
				Value:   defaults.NodeID,
				Usage:   "node identity in shipped log lines",
				EnvVars: []string{"TASKENGINE_NODE_ID"},
			},
			&cli.StringFlag{
				Name:    "journal",
				Usage:   "write the event log as an Arrow IPC stream to this path",
				EnvVars: []string{"TASKENGINE_JOURNAL"},
			},
			&cli.IntFlag{
				Name:    "tasks",
				Usage:   "number of synthetic tasks (0 runs the reference scenario)",
				EnvVars: []string{"TASKENGINE_TASKS"},
			},
			&cli.IntFlag{
				Name:    "fail-every",
				Usage:   "make every n-th synthetic task fail",
				EnvVars: []string{"TASKENGINE_FAIL_EVERY"},
			},
			&cli.DurationFlag{
				Name:    "task-delay",
				Usage:   "sleep per synthetic task",
				EnvVars: []string{"TASKENGINE_TASK_DELAY"},
			},
			&cli.DurationFlag{
				Name:    "hold",
				Usage:   "keep servers up this long after the drain",
				EnvVars: []string{"TASKENGINE_HOLD"},
			},
		},
		Action: runAction,
	}
}

func configFromContext(c *cli.Context) *config.Config {
	return &config.Config{
		Workers:     c.Int("workers"),
		PoolName:    c.String("name"),
		TimeLayout:  c.String("time-layout"),
		Quiet:       c.Bool("quiet"),
		JSONLog:     c.Bool("json-log"),
		MetricsAddr: c.String("metrics-addr"),
		HealthAddr:  c.String("health-addr"),
		ZmqEndpoint: c.String("zmq-endpoint"),
		NodeID:      c.String("node-id"),
		JournalPath: c.String("journal"),
		Tasks:       c.Int("tasks"),
		FailEvery:   c.Int("fail-every"),
		TaskDelay:   c.Duration("task-delay"),
		Hold:        c.Duration("hold"),
	}
}

func runAction(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	stats, err := run(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log.Printf("drain finished: completed=%d failed=%d success_rate=%.1f%%",
		stats.Completed, stats.Failed, stats.SuccessRate)
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
