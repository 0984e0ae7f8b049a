package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate answers robots.txt questions per host, loading each file once.
// A robots.txt that cannot be fetched allows everything.
type RobotsGate struct {
	client *Client
	agent  string
	log    logrus.FieldLogger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobotsGate(client *Client, agent string, log logrus.FieldLogger) *RobotsGate {
	return &RobotsGate{
		client: client,
		agent:  agent,
		log:    log,
		groups: make(map[string]*robotstxt.Group),
	}
}

func (g *RobotsGate) Allowed(ctx context.Context, link string) (bool, error) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("invalid url %q", link)
	}

	group := g.group(ctx, u)
	if group == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path), nil
}

func (g *RobotsGate) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	defer g.mu.Unlock()

	if group, ok := g.groups[key]; ok {
		return group
	}

	robotsURL := key + "/robots.txt"
	g.log.WithField("url", robotsURL).Debug("Loading robots.txt")

	var group *robotstxt.Group
	resp, err := g.client.Get(ctx, robotsURL)
	if err != nil {
		g.log.WithField("url", robotsURL).Warnf("robots.txt unavailable, allowing all: %v", err)
	} else {
		data, err := robotstxt.FromResponse(resp)
		resp.Body.Close()
		if err != nil {
			g.log.WithField("url", robotsURL).Warnf("robots.txt unparsable, allowing all: %v", err)
		} else {
			group = data.FindGroup(g.agent)
		}
	}

	g.groups[key] = group
	return group
}
