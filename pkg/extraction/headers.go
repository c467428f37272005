package extraction

// Values shared by every browser profile.
const (
	browserAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	browserAcceptLanguage = "en-US,en;q=0.9"
)

// HeaderProfile is the set of request headers presented to the upstream
// for one extraction attempt.
type HeaderProfile struct {
	UserAgent               string
	Accept                  string
	AcceptLanguage          string
	DNT                     bool
	UpgradeInsecureRequests bool
}

// Headers renders the profile as engine "Name:value" header arguments.
func (h HeaderProfile) Headers() []string {
	out := make([]string, 0, 5)
	if h.UserAgent != "" {
		out = append(out, "User-Agent:"+h.UserAgent)
	}
	if h.Accept != "" {
		out = append(out, "Accept:"+h.Accept)
	}
	if h.AcceptLanguage != "" {
		out = append(out, "Accept-Language:"+h.AcceptLanguage)
	}
	if h.DNT {
		out = append(out, "DNT:1")
	}
	if h.UpgradeInsecureRequests {
		out = append(out, "Upgrade-Insecure-Requests:1")
	}
	return out
}

// HeaderPool is an immutable set of header profiles.
type HeaderPool struct {
	profiles []HeaderProfile
}

// NewHeaderPool builds one browser-like profile per user agent.
func NewHeaderPool(userAgents []string) *HeaderPool {
	p := &HeaderPool{profiles: make([]HeaderProfile, 0, len(userAgents))}
	for _, ua := range userAgents {
		if ua == "" {
			continue
		}
		p.profiles = append(p.profiles, HeaderProfile{
			UserAgent:               ua,
			Accept:                  browserAccept,
			AcceptLanguage:          browserAcceptLanguage,
			DNT:                     true,
			UpgradeInsecureRequests: true,
		})
	}
	return p
}

// Len returns the number of profiles.
func (p *HeaderPool) Len() int {
	return len(p.profiles)
}

// Pick selects a profile using intn, which must behave like rand.IntN.
func (p *HeaderPool) Pick(intn func(int) int) HeaderProfile {
	if len(p.profiles) == 0 {
		return HeaderProfile{}
	}
	return p.profiles[intn(len(p.profiles))]
}
