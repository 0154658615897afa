package player

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"tubeplayer/internal/logging"
)

var log = logging.For("player")

// DefaultProbeTimeout bounds preparation.
const DefaultProbeTimeout = 20 * time.Second

// FFPlayConfig locates the ffmpeg tools.
type FFPlayConfig struct {
	FFPlayPath   string
	FFProbePath  string
	ProbeTimeout time.Duration
}

func (c FFPlayConfig) withDefaults() FFPlayConfig {
	if c.FFPlayPath == "" {
		c.FFPlayPath = "ffplay"
	}
	if c.FFProbePath == "" {
		c.FFProbePath = "ffprobe"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// FFPlay is a Player backed by an ffplay process.
type FFPlay struct {
	cfg FFPlayConfig
	cb  Callbacks

	mu       sync.Mutex
	source   string
	remote   bool
	volume   int
	duration time.Duration
	// offset is where the current process started, clock the position
	// it last reported relative to offset.
	offset   time.Duration
	clock    time.Duration
	cmd      *exec.Cmd
	gen      int
	paused   bool
	buffered bool
	released bool
	cancel   context.CancelFunc
}

// NewFFPlay returns a Factory producing FFPlay players.
func NewFFPlay(cfg FFPlayConfig) Factory {
	cfg = cfg.withDefaults()
	return func(cb Callbacks) Player {
		return &FFPlay{cfg: cfg, cb: cb, volume: 100}
	}
}

// SetDataSource implements Player.
func (p *FFPlay) SetDataSource(ctx context.Context, source string) error {
	remote := isRemote(source)
	if !remote {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		f.Close()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.New("player released")
	}
	p.source = source
	p.remote = remote
	return nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// PrepareAsync implements Player.
func (p *FFPlay) PrepareAsync() {
	p.mu.Lock()
	if p.released || p.source == "" {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ProbeTimeout)
	p.cancel = cancel
	source, remote := p.source, p.remote
	p.mu.Unlock()

	go func() {
		defer cancel()
		duration, err := p.probe(ctx, source)

		p.mu.Lock()
		if p.released {
			p.mu.Unlock()
			return
		}
		p.duration = duration
		p.mu.Unlock()

		if err != nil {
			var pe *probeError
			code := ErrUnknown
			if errors.As(err, &pe) {
				code = pe.code
			}
			log.Warn("Prepare failed (%s): %v", code, err)
			p.cb.fail(code)
			return
		}
		p.cb.prepared()
		if !remote {
			p.cb.buffering(100)
		}
	}()
}

type probeError struct {
	code ErrorCode
	err  error
}

func (e *probeError) Error() string { return e.err.Error() }
func (e *probeError) Unwrap() error { return e.err }

func (p *FFPlay) probe(ctx context.Context, source string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.cfg.FFProbePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, &probeError{code: ErrIO, err: fmt.Errorf("ffprobe: %w", ctx.Err())}
		}
		return 0, &probeError{code: classifyStderr(stderr.String()), err: fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))}
	}
	return parseProbe(stdout.Bytes())
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func parseProbe(data []byte) (time.Duration, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, &probeError{code: ErrMalformed, err: fmt.Errorf("parse ffprobe output: %w", err)}
	}
	playable := false
	for _, s := range out.Streams {
		if s.CodecType == "audio" || s.CodecType == "video" {
			playable = true
		}
	}
	if !playable {
		return 0, &probeError{code: ErrNotValidForProgressive, err: errors.New("no audio or video stream")}
	}
	secs, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		// Live streams have no duration.
		return 0, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// classifyStderr maps ffprobe diagnostics to an ErrorCode. A missing moov
// atom means the index sits at the end of the file or was never written, so
// the source cannot be played while it streams.
func classifyStderr(msg string) ErrorCode {
	switch {
	case strings.Contains(msg, "moov atom not found"):
		return ErrNotValidForProgressive
	case strings.Contains(msg, "Invalid data found"):
		return ErrMalformed
	case strings.Contains(msg, "Server returned"), strings.Contains(msg, "Connection"),
		strings.Contains(msg, "No such file"), strings.Contains(msg, "I/O error"):
		return ErrIO
	case strings.Contains(msg, "not supported"), strings.Contains(msg, "Unsupported"):
		return ErrUnsupported
	}
	return ErrUnknown
}

// Start implements Player.
func (p *FFPlay) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.New("player released")
	}
	if p.source == "" {
		return errors.New("no data source")
	}
	if p.cmd != nil {
		if p.paused {
			if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
				return fmt.Errorf("resume ffplay: %w", err)
			}
			p.paused = false
		}
		return nil
	}
	return p.spawnLocked()
}

func (p *FFPlay) spawnLocked() error {
	args := []string{"-nodisp", "-autoexit", "-hide_banner", "-loglevel", "error", "-stats",
		"-volume", strconv.Itoa(p.volume)}
	if p.offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(p.offset.Seconds(), 'f', 3, 64))
	}
	args = append(args, p.source)

	cmd := exec.Command(p.cfg.FFPlayPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffplay: %w", err)
	}
	p.gen++
	p.cmd = cmd
	p.clock = 0
	p.paused = false
	log.Debug("ffplay started (pid %d) at %s", cmd.Process.Pid, p.offset)
	go p.watch(cmd, stderr, p.gen)
	return nil
}

func (p *FFPlay) watch(cmd *exec.Cmd, stderr io.Reader, gen int) {
	var tail string
	sc := bufio.NewScanner(stderr)
	sc.Split(splitStatus)
	for sc.Scan() {
		line := sc.Text()
		pos, ok := parseStatus(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				tail = line
			}
			continue
		}
		p.mu.Lock()
		current := gen == p.gen && !p.released
		first := current && p.remote && !p.buffered
		if current {
			p.clock = pos
			p.buffered = true
		}
		p.mu.Unlock()
		if first {
			p.cb.buffering(100)
		}
	}
	err := cmd.Wait()

	p.mu.Lock()
	if gen != p.gen || p.released {
		p.mu.Unlock()
		return
	}
	p.cmd = nil
	p.paused = false
	remote := p.remote
	p.mu.Unlock()

	if err == nil {
		p.cb.completion()
		return
	}
	log.Warn("ffplay exited: %v %s", err, tail)
	code := classifyStderr(tail)
	if code == ErrUnknown {
		code = ErrServerDied
		if remote {
			code = ErrIO
		}
	}
	p.cb.fail(code)
}

// splitStatus splits ffplay stderr on carriage returns as well as newlines.
func splitStatus(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseStatus reads the clock from a status line such as
// "   5.43 A-V: -0.012 fd=   0 aq=   23KB vq=    0KB sq=    0B".
func parseStatus(line string) (time.Duration, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	switch fields[1] {
	case "A-V:", "M-A:", "M-V:":
	default:
		return 0, false
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || secs < 0 || math.IsNaN(secs) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Pause implements Player.
func (p *FFPlay) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.paused {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause ffplay: %w", err)
	}
	p.paused = true
	return nil
}

// Stop implements Player.
func (p *FFPlay) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	p.offset = 0
	p.clock = 0
	return nil
}

// killLocked kills the current process; its watcher ignores the exit.
func (p *FFPlay) killLocked() {
	if p.cmd == nil {
		return
	}
	p.gen++
	proc := p.cmd.Process
	p.cmd = nil
	p.paused = false
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("failed to kill ffplay (pid %d): %v", proc.Pid, err)
	}
}

// SetVolume implements Player. A running process is restarted at the
// current position; a paused one resumes at that position on Start.
func (p *FFPlay) SetVolume(volume int) {
	volume = max(0, min(100, volume))

	p.mu.Lock()
	defer p.mu.Unlock()
	if volume == p.volume || p.released {
		p.volume = volume
		return
	}
	p.volume = volume
	if p.cmd == nil {
		return
	}
	paused := p.paused
	pos := p.offset + p.clock
	p.killLocked()
	p.offset = pos
	p.clock = 0
	if paused {
		return
	}
	if err := p.spawnLocked(); err != nil {
		log.Warn("Restart after volume change failed: %v", err)
	}
}

// Position implements Player.
func (p *FFPlay) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset + p.clock
}

// Duration implements Player.
func (p *FFPlay) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Release implements Player.
func (p *FFPlay) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	if p.cancel != nil {
		p.cancel()
	}
	p.killLocked()
}

func (cb Callbacks) prepared() {
	if cb.OnPrepared != nil {
		cb.OnPrepared()
	}
}

func (cb Callbacks) completion() {
	if cb.OnCompletion != nil {
		cb.OnCompletion()
	}
}

func (cb Callbacks) fail(code ErrorCode) {
	if cb.OnError != nil {
		cb.OnError(code)
	}
}

func (cb Callbacks) buffering(percent int) {
	if cb.OnBuffering != nil {
		cb.OnBuffering(percent)
	}
}
