// Package profiler manages the profiling session that brackets a batch run.
//
// A session is acquired with Start and released with Stop. Start looks up
// the profiling group first so that a misconfigured group aborts the run
// before any invocation is sent. Registering the agent may fail without
// aborting the run; the session then samples nothing. Stop is idempotent and
// safe to defer.
//
// There is no Go agent for CodeGuru Profiler, so samples never reach the
// profiling group. The group is described and the process registered with
// ConfigureAgent, which decides whether to sample; the samples themselves are
// a local runtime/pprof CPU profile written to Options.Output on Stop.
package profiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codeguruprofiler"
	"github.com/aws/aws-sdk-go-v2/service/codeguruprofiler/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/oriys/lambdaburst/internal/logging"
)

// ErrGroupNotFound is returned when the profiling group does not exist.
var ErrGroupNotFound = errors.New("profiling group not found")

// API is the subset of the CodeGuru Profiler client used here.
type API interface {
	DescribeProfilingGroup(ctx context.Context, params *codeguruprofiler.DescribeProfilingGroupInput, optFns ...func(*codeguruprofiler.Options)) (*codeguruprofiler.DescribeProfilingGroupOutput, error)
	ConfigureAgent(ctx context.Context, params *codeguruprofiler.ConfigureAgentInput, optFns ...func(*codeguruprofiler.Options)) (*codeguruprofiler.ConfigureAgentOutput, error)
}

// Options configures a session.
type Options struct {
	ProfilingGroup string
	// Output is where the CPU profile is written on Stop. Empty discards it.
	Output string
	// FleetInstanceID identifies this process to the profiling group.
	// Defaults to hostname plus a random suffix.
	FleetInstanceID string
}

// GroupInfo is the description of a profiling group.
type GroupInfo struct {
	Name             string
	ARN              string
	ComputePlatform  string
	ProfilingEnabled bool
	CreatedAt        time.Time
}

// Session is an active profiling session.
type Session struct {
	client  API
	opts    Options
	group   GroupInfo
	period  time.Duration
	enabled bool

	mu      sync.Mutex
	buf     bytes.Buffer
	running bool
	stopped bool
}

// hooks for the process-wide CPU profiler
var (
	startCPUProfile = pprof.StartCPUProfile
	stopCPUProfile  = pprof.StopCPUProfile
)

// Describe looks up a profiling group.
func Describe(ctx context.Context, client API, group string) (*GroupInfo, error) {
	out, err := client.DescribeProfilingGroup(ctx, &codeguruprofiler.DescribeProfilingGroupInput{
		ProfilingGroupName: aws.String(group),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrGroupNotFound, group, err)
		}
		return nil, fmt.Errorf("describe profiling group %s: %w", group, err)
	}
	if out.ProfilingGroup == nil {
		return nil, fmt.Errorf("%w: %s: empty description", ErrGroupNotFound, group)
	}

	pg := out.ProfilingGroup
	info := &GroupInfo{
		Name:            aws.ToString(pg.Name),
		ARN:             aws.ToString(pg.Arn),
		ComputePlatform: string(pg.ComputePlatform),
		CreatedAt:       aws.ToTime(pg.CreatedAt),
	}
	if pg.AgentOrchestrationConfig != nil {
		info.ProfilingEnabled = aws.ToBool(pg.AgentOrchestrationConfig.ProfilingEnabled)
	}
	return info, nil
}

// Start describes the profiling group, registers this process as an agent
// and starts CPU profiling if the group asks for it.
func Start(ctx context.Context, client API, opts Options) (*Session, error) {
	info, err := Describe(ctx, client, opts.ProfilingGroup)
	if err != nil {
		return nil, err
	}

	if opts.FleetInstanceID == "" {
		opts.FleetInstanceID = fleetInstanceID()
	}

	s := &Session{client: client, opts: opts, group: *info}
	log := logging.Op().With("profiling_group", opts.ProfilingGroup, "fleet_instance_id", opts.FleetInstanceID)

	out, err := client.ConfigureAgent(ctx, &codeguruprofiler.ConfigureAgentInput{
		ProfilingGroupName: aws.String(opts.ProfilingGroup),
		FleetInstanceId:    aws.String(opts.FleetInstanceID),
	})
	if err != nil {
		// agent registration never aborts the run; the group lookup is the
		// only fatal check
		log.Warn("Profiler agent not registered, sampling disabled", "error", err)
		return s, nil
	}
	if out.Configuration != nil {
		s.enabled = aws.ToBool(out.Configuration.ShouldProfile)
		s.period = time.Duration(aws.ToInt32(out.Configuration.PeriodInSeconds)) * time.Second
	}

	if !s.enabled {
		log.Info("Profiler registered, sampling disabled by group configuration")
		return s, nil
	}

	if err := startCPUProfile(&s.buf); err != nil {
		// another profile already owns the runtime profiler
		log.Warn("CPU profile not started", "error", err)
		return s, nil
	}
	s.running = true
	log.Info("Profiler started", "period", s.period)
	return s, nil
}

// Group returns the description fetched by Start.
func (s *Session) Group() GroupInfo {
	return s.group
}

// Profiling reports whether a CPU profile is being collected.
func (s *Session) Profiling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop ends the session and writes the collected profile. Calling Stop more
// than once is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	if !s.running {
		logging.Op().Info("Profiler stopped", "profiling_group", s.opts.ProfilingGroup)
		return nil
	}
	stopCPUProfile()
	s.running = false

	size := s.buf.Len()
	if s.opts.Output != "" {
		if err := os.WriteFile(s.opts.Output, s.buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write profile %s: %w", s.opts.Output, err)
		}
	}
	logging.Op().Info("Profiler stopped",
		"profiling_group", s.opts.ProfilingGroup,
		"profile_bytes", size,
		"output", s.opts.Output,
	)
	return nil
}

func fleetInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "lambdaburst"
	}
	return host + "-" + uuid.NewString()[:8]
}

func isNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceNotFoundException"
	}
	return false
}
