/*
Package config reads scheduler settings from YAML or JSON documents.

A Config wraps the decoded map and exposes typed getters that take a
default, so callers never type-assert:

	cfg, err := config.FromFile("cellink.yaml")
	if err != nil {
	    return err
	}
	sched := cfg.Sub("scheduler")
	workers := sched.Int("workers", 8)
	poll := sched.Duration("poll_interval", 5*time.Millisecond)

Durations accept time.ParseDuration strings or a number of seconds.
Integers accept whole floats, which is how JSON numbers decode.

Config is safe for concurrent reads as long as the wrapped map is not
modified.
*/
package config
