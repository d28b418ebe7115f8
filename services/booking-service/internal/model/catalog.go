package model

import "time"

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	PriceCents      int64
	Active          bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type AddOn struct {
	ID         string
	Name       string
	PriceCents int64
}

type Staff struct {
	ID     string
	Name   string
	Active bool
}
