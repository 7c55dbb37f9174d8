package sampler

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// Sampler reads counters on its own goroutine whenever Probe is called and
// publishes the resulting rates as an immutable Snapshot.
type Sampler struct {
	src     Source
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu  sync.Mutex
	cfg settings

	req       *request
	wg        sync.WaitGroup
	closeOnce sync.Once

	latest atomic.Pointer[model.Snapshot]
	report atomic.Pointer[Report]

	// Owned by the worker goroutine.
	prev previous
}

// settings are the identifiers read at the start of every pass.
type settings struct {
	mask model.Mask
	disk string
	cpu  string
	eth  string
	io   string
}

type previous struct {
	cpu       model.CPUCounters
	cpuName   string
	cpuSeeded bool

	net       model.NetCounters
	netName   string
	netAt     time.Time
	netSeeded bool

	io       model.IOCounters
	ioName   string
	ioAt     time.Time
	ioSeeded bool
}

// Report describes the outcome of one pass.
type Report struct {
	Generation uint64
	Started    time.Time
	Duration   time.Duration
	Published  model.Mask
	Errors     []*FamilyError
}

// Err joins the per-family errors, or returns nil for a clean pass.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Option configures a Sampler.
type Option func(*Sampler)

func WithLogger(l *slog.Logger) Option { return func(s *Sampler) { s.logger = l } }

func WithMetrics(m *Metrics) Option { return func(s *Sampler) { s.metrics = m } }

// WithClock replaces time.Now for rate computation.
func WithClock(now func() time.Time) Option { return func(s *Sampler) { s.now = now } }

// WithMask sets the initial family mask. The default is every family.
func WithMask(m model.Mask) Option { return func(s *Sampler) { s.cfg.mask = m } }

// New starts the worker goroutine. Call Close to stop it.
func New(src Source, opts ...Option) *Sampler {
	s := &Sampler{
		src: src,
		now: time.Now,
		cfg: settings{mask: model.AllFamilies},
		req: newRequest(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.latest.Store(model.Zero())
	s.report.Store(&Report{})

	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Sampler) SetProcMask(m model.Mask) {
	s.mu.Lock()
	s.cfg.mask = m
	s.mu.Unlock()
}

// SetDisk selects the mount path whose free space is reported.
func (s *Sampler) SetDisk(path string) {
	s.mu.Lock()
	s.cfg.disk = path
	s.mu.Unlock()
}

// SetCPU selects the CPU aggregate: "" for all cores or a name like "cpu2".
func (s *Sampler) SetCPU(name string) {
	s.mu.Lock()
	s.cfg.cpu = name
	s.mu.Unlock()
}

// SetEth selects the network interface; "" sums all interfaces.
func (s *Sampler) SetEth(name string) {
	s.mu.Lock()
	s.cfg.eth = name
	s.mu.Unlock()
}

// SetIO selects the block device; "" sums all whole devices.
func (s *Sampler) SetIO(name string) {
	s.mu.Lock()
	s.cfg.io = name
	s.mu.Unlock()
}

func (s *Sampler) current() settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Probe requests a sampling pass and returns immediately. Calls made while a
// pass is pending or running are folded into it.
func (s *Sampler) Probe() {
	s.metrics.probe(s.req.post())
}

// Latest returns the most recently published snapshot. It is never nil and
// must not be modified.
func (s *Sampler) Latest() *model.Snapshot { return s.latest.Load() }

// LastReport returns the outcome of the most recent pass.
func (s *Sampler) LastReport() Report { return *s.report.Load() }

// Close stops the worker, waiting for a running pass to finish. A pass that
// is pending but not started is dropped. Close is safe to call repeatedly.
func (s *Sampler) Close() {
	s.closeOnce.Do(func() {
		s.req.stop()
		s.wg.Wait()
	})
}

func (s *Sampler) run() {
	defer s.wg.Done()
	for s.req.wait() {
		s.pass()
		s.req.done()
	}
	s.logger.Debug("sampler: worker stopped")
}

func (s *Sampler) pass() {
	cfg := s.current()
	start := s.now()
	next := s.latest.Load().Clone()
	rep := &Report{Started: start}

	for _, fam := range cfg.mask.Families() {
		published, err := s.sample(fam, cfg, next)
		if err != nil {
			fe := &FamilyError{Family: fam, Err: err}
			rep.Errors = append(rep.Errors, fe)
			s.logger.Debug("sampler: family read failed",
				slog.String("family", fam.String()),
				slog.Bool("transient", fe.Transient()),
				slog.String("error", err.Error()))
			continue
		}
		if published {
			rep.Published |= fam
			next.Families |= fam
		}
	}

	next.Generation++
	next.Taken = start
	s.latest.Store(next)

	rep.Generation = next.Generation
	rep.Duration = s.now().Sub(start)
	s.report.Store(rep)
	s.metrics.observe(next, rep)
}

// sample reads one family into next. It reports whether the family produced
// a result; the first reading of a counter family only seeds it.
func (s *Sampler) sample(fam model.Mask, cfg settings, next *model.Snapshot) (bool, error) {
	switch fam {
	case model.CPUFamily:
		return s.sampleCPU(cfg.cpu, next)
	case model.NetworkFamily:
		return s.sampleNetwork(cfg.eth, next)
	case model.BlockIOFamily:
		return s.sampleBlockIO(cfg.io, next)
	case model.DiskFamily:
		d, err := s.src.DiskUsage(cfg.disk)
		if err != nil {
			return false, err
		}
		next.Disk = d
	case model.MemoryFamily:
		m, err := s.src.Memory()
		if err != nil {
			return false, err
		}
		next.Memory = m
	case model.UsersFamily:
		sessions, err := s.src.Sessions()
		if err != nil {
			return false, err
		}
		next.Users = model.Users{Names: loggedInUsers(sessions)}
	case model.HostFamily:
		h, err := s.src.Host()
		if err != nil {
			return false, err
		}
		next.Host = h
	case model.BatteryFamily:
		b, err := s.src.Battery()
		if err != nil {
			return false, err
		}
		next.Battery = b
	default:
		return false, nil
	}
	return true, nil
}

func (s *Sampler) sampleCPU(name string, next *model.Snapshot) (bool, error) {
	cur, err := s.src.CPU(name)
	if err != nil {
		return false, err
	}
	p := &s.prev
	if !p.cpuSeeded || p.cpuName != name || cur.Total() < p.cpu.Total() {
		p.cpu, p.cpuName, p.cpuSeeded = cur, name, true
		return false, nil
	}
	rates, ok := cpuRates(p.cpu, cur)
	p.cpu = cur
	if !ok {
		return false, nil
	}
	next.CPU = rates
	return true, nil
}

func (s *Sampler) sampleNetwork(iface string, next *model.Snapshot) (bool, error) {
	cur, err := s.src.Network(iface)
	if err != nil {
		return false, err
	}
	at := s.now()
	p := &s.prev
	if !p.netSeeded || p.netName != iface {
		p.net, p.netName, p.netAt, p.netSeeded = cur, iface, at, true
		return false, nil
	}
	next.Network = networkRate(iface, p.net, cur, at.Sub(p.netAt))
	p.net, p.netAt = cur, at
	return true, nil
}

func (s *Sampler) sampleBlockIO(device string, next *model.Snapshot) (bool, error) {
	cur, err := s.src.BlockIO(device)
	if err != nil {
		return false, err
	}
	at := s.now()
	p := &s.prev
	if !p.ioSeeded || p.ioName != device {
		p.io, p.ioName, p.ioAt, p.ioSeeded = cur, device, at, true
		return false, nil
	}
	next.BlockIO = blockIORate(device, p.io, cur, at.Sub(p.ioAt))
	p.io, p.ioAt = cur, at
	return true, nil
}
