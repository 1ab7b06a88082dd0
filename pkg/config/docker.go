package config

import (
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running
// inside a container so that Postgres, Redis and local LLM servers on the host
// machine stay reachable. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return rewriteLoopback(host)
}

// ResolveURLForDocker applies ResolveHostForDocker to the host part of a URL,
// e.g. a local Ollama or vLLM endpoint configured as http://localhost:11434/v1.
func ResolveURLForDocker(raw string) string {
	if !IsRunningInDocker() || raw == "" {
		return raw
	}
	return rewriteURLHost(raw)
}

func rewriteLoopback(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

func rewriteURLHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := rewriteLoopback(u.Hostname())
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	return u.String()
}
