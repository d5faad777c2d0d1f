// Package pipeline moves a single volume from the source platform to the target platform.
package pipeline

import (
	"context"
	"fmt"

	"github.com/codebypatrickleung/hvshift/internal/errs"
	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
)

// DefaultPartitionPadding is the space appended to root images before driver injection.
const DefaultPartitionPadding int64 = 500 * 1024

// Stage is the last step a volume completed.
type Stage int

const (
	Pending Stage = iota
	Extracted
	Downloaded
	ConvertedToTargetFormat
	PartitionFixed
	DriversInjected
	Placed
)

func (s Stage) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Extracted:
		return "Extracted"
	case Downloaded:
		return "Downloaded"
	case ConvertedToTargetFormat:
		return "ConvertedToTargetFormat"
	case PartitionFixed:
		return "PartitionFixed"
	case DriversInjected:
		return "DriversInjected"
	case Placed:
		return "Placed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Options controls a pipeline run.
type Options struct {
	DryRun              bool
	SkipDriverInjection bool
	PartitionPadding    int64
	// OnStage is called after every completed stage.
	OnStage func(volumeID string, stage Stage)
}

// Result describes how far a volume got.
type Result struct {
	VolumeID string
	Reached  Stage
	Injected bool
	Stages   []Stage
}

// Pipeline runs the transfer stages for one volume at a time.
type Pipeline struct {
	source hypervisor.SourcePlatform
	target hypervisor.TargetPlatform
	logger *logger.Logger
	opts   Options
}

// New creates a pipeline between source and target.
func New(source hypervisor.SourcePlatform, target hypervisor.TargetPlatform, log *logger.Logger, opts Options) *Pipeline {
	if opts.PartitionPadding <= 0 {
		opts.PartitionPadding = DefaultPartitionPadding
	}
	return &Pipeline{source: source, target: target, logger: log, opts: opts}
}

// Run transfers vol. Any failure stops the volume at the stage it reached and is returned as
// *errs.RemoteCommandError. Nothing is retried or undone.
func (p *Pipeline) Run(ctx context.Context, vol model.Volume, sourceHost, targetHost model.Host) (Result, error) {
	result := Result{VolumeID: vol.ID, Reached: Pending}
	name := vol.Path
	isRoot := vol.Kind == model.VolumeKindRoot
	inject := isRoot && !p.opts.SkipDriverInjection
	log := p.logger.With("volume", vol.ID)

	var url string
	steps := []struct {
		stage   Stage
		host    model.Host
		skip    bool
		skipMsg string
		desc    string
		fn      func() error
	}{
		{
			stage: Extracted,
			host:  sourceHost,
			desc:  fmt.Sprintf("export %s on %s", name, sourceHost.Name),
			fn: func() error {
				var err error
				url, err = p.source.RequestTransferURL(ctx, name, sourceHost)
				if err != nil {
					return err
				}
				if url == "" {
					return fmt.Errorf("%s export of %s returned no transfer URL", p.source.Name(), name)
				}
				return nil
			},
		},
		{
			stage: Downloaded,
			host:  targetHost,
			desc:  fmt.Sprintf("download %s to %s", name, targetHost.Name),
			fn:    func() error { return p.target.Fetch(ctx, targetHost, url, name) },
		},
		{
			stage: ConvertedToTargetFormat,
			host:  targetHost,
			desc:  fmt.Sprintf("convert %s to the %s format", name, p.target.Name()),
			fn:    func() error { return p.target.ConvertToNativeFormat(ctx, targetHost, name) },
		},
		{
			stage:   PartitionFixed,
			host:    targetHost,
			skip:    !isRoot,
			skipMsg: "Skipping partition fix for data volume",
			desc:    fmt.Sprintf("grow %s by %d bytes", name, p.opts.PartitionPadding),
			fn:      func() error { return p.target.GrowPartition(ctx, targetHost, name, p.opts.PartitionPadding) },
		},
		{
			stage:   DriversInjected,
			host:    targetHost,
			skip:    !inject,
			skipMsg: "Skipping driver injection",
			desc:    fmt.Sprintf("inject %s drivers into %s", p.target.Name(), name),
			fn:      func() error { return p.target.InjectDrivers(ctx, targetHost, name) },
		},
		{
			stage: Placed,
			host:  targetHost,
			desc:  fmt.Sprintf("move %s into the storage pool", name),
			fn:    func() error { return p.target.Place(ctx, targetHost, name, inject) },
		},
	}

	for _, s := range steps {
		if s.skip {
			log.Debug(s.skipMsg)
			continue
		}
		if p.opts.DryRun {
			log.Infof("Dry-run: would %s", s.desc)
			continue
		}
		log.Infof("Running %s: %s", s.stage, s.desc)
		if err := s.fn(); err != nil {
			return result, &errs.RemoteCommandError{
				Step:     s.stage.String(),
				Host:     s.host.Name,
				VolumeID: vol.ID,
				Err:      err,
			}
		}
		result.Reached = s.stage
		result.Stages = append(result.Stages, s.stage)
		if p.opts.OnStage != nil {
			p.opts.OnStage(vol.ID, s.stage)
		}
	}

	if !p.opts.DryRun {
		result.Injected = inject
		log.Successf("✓ Volume %s placed on %s", name, targetHost.Name)
	}
	return result, nil
}
