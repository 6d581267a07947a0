package crawler

import (
	"strings"
	"sync/atomic"
)

const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/122 Safari/537.36"

// UserAgents hands out User-Agent strings round-robin.
type UserAgents struct {
	list []string
	next atomic.Uint64
}

func NewUserAgents(list []string) *UserAgents {
	ua := &UserAgents{}
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			ua.list = append(ua.list, s)
		}
	}
	if len(ua.list) == 0 {
		ua.list = []string{fallbackUserAgent}
	}
	return ua
}

func (u *UserAgents) Next() string {
	i := u.next.Add(1) - 1
	return u.list[i%uint64(len(u.list))]
}
