package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Runner invokes the extraction engine once and returns its raw JSON output.
type Runner interface {
	Run(ctx context.Context, reference string, opts Options, headers HeaderProfile) ([]byte, error)
}

// YtDlpRunner drives the yt-dlp binary through go-ytdlp.
type YtDlpRunner struct {
	executable string
	proxyFor   func(reference string) string
}

// NewYtDlpRunner creates a runner for the given executable. proxyFor may be
// nil; otherwise it picks the outbound proxy for each reference.
func NewYtDlpRunner(executable string, proxyFor func(string) string) *YtDlpRunner {
	return &YtDlpRunner{executable: executable, proxyFor: proxyFor}
}

// Command builds the engine invocation for one attempt.
func (r *YtDlpRunner) Command(reference string, opts Options, headers HeaderProfile) *ytdlp.Command {
	cmd := ytdlp.New().
		DumpSingleJSON().
		SkipDownload().
		NoWarnings().
		IgnoreErrors().
		NoCheckCertificates().
		Format(opts.format())

	if r.executable != "" {
		cmd = cmd.SetExecutable(r.executable)
	}
	if opts.Flat {
		cmd = cmd.FlatPlaylist()
	}
	if opts.GeoBypass {
		cmd = cmd.GeoBypassCountry(GeoBypassCountry)
	}
	if args := opts.ExtractorArgs(); args != "" {
		cmd = cmd.ExtractorArgs(args)
	}
	for _, h := range headers.Headers() {
		cmd = cmd.AddHeaders(h)
	}
	if r.proxyFor != nil {
		if p := r.proxyFor(reference); p != "" {
			cmd = cmd.Proxy(p)
		}
	}
	return cmd
}

// Run executes the engine and returns stdout. With --ignore-errors the engine
// exits non-zero when a single playlist entry fails, so a usable document
// on stdout wins over the exit status. Otherwise stderr is folded into the
// error so callers can recognise upstream refusals.
func (r *YtDlpRunner) Run(ctx context.Context, reference string, opts Options, headers HeaderProfile) ([]byte, error) {
	result, err := r.Command(reference, opts, headers).Run(ctx, reference)
	if result != nil && hasDocument(result.Stdout) {
		return []byte(result.Stdout), nil
	}
	if err != nil {
		if result != nil {
			if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
				return nil, fmt.Errorf("%w: %s", err, lastLine(stderr))
			}
		}
		return nil, err
	}
	return nil, ErrNoDocument
}

func hasDocument(stdout string) bool {
	s := strings.TrimSpace(stdout)
	return s != "" && s != "null"
}

// lastLine keeps the final line of engine diagnostics, which carries the error.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
