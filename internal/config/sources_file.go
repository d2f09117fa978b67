package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// sourcesFile is the optional YAML document naming what to harvest. Values set
// here are overridden by environment variables.
type sourcesFile struct {
	Instagram struct {
		Accounts           []string `yaml:"accounts"`
		DaysBack           int      `yaml:"days_back"`
		MaxPostsPerAccount int      `yaml:"max_posts_per_account"`
	} `yaml:"instagram"`

	Slack struct {
		ChannelID     string `yaml:"channel_id"`
		LookbackHours int    `yaml:"lookback_hours"`
	} `yaml:"slack"`

	Meetup struct {
		Latitude  *float64 `yaml:"lat"`
		Longitude *float64 `yaml:"lon"`
		RadiusKm  float64  `yaml:"radius_km"`
		First     int      `yaml:"first"`
		Apify     struct {
			Keywords            []string `yaml:"keywords"`
			Cities              []string `yaml:"cities"`
			Country             string   `yaml:"country"`
			Platforms           []string `yaml:"platforms"`
			MaxItemsPerPlatform int      `yaml:"max_items_per_platform"`
			DateRangeMonths     int      `yaml:"date_range_months"`
		} `yaml:"apify"`
	} `yaml:"meetup"`

	Pipeline struct {
		DefaultLocation string   `yaml:"default_location"`
		Region          string   `yaml:"region"`
		Timezone        string   `yaml:"timezone"`
		Sources         []string `yaml:"sources"`
	} `yaml:"pipeline"`
}

func applySourcesFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if len(f.Instagram.Accounts) > 0 {
		cfg.Social.Accounts = f.Instagram.Accounts
	}
	if f.Instagram.DaysBack > 0 {
		cfg.Social.DaysBack = f.Instagram.DaysBack
	}
	if f.Instagram.MaxPostsPerAccount > 0 {
		cfg.Social.MaxPostsPerAccount = f.Instagram.MaxPostsPerAccount
	}

	if f.Slack.ChannelID != "" {
		cfg.Chat.ChannelID = f.Slack.ChannelID
	}
	if f.Slack.LookbackHours > 0 {
		cfg.Chat.Lookback = hours(f.Slack.LookbackHours)
	}

	m := f.Meetup
	if m.Latitude != nil {
		cfg.Platform.Latitude = *m.Latitude
	}
	if m.Longitude != nil {
		cfg.Platform.Longitude = *m.Longitude
	}
	if m.RadiusKm > 0 {
		cfg.Platform.RadiusKm = m.RadiusKm
	}
	if m.First > 0 {
		cfg.Platform.First = m.First
	}
	if len(m.Apify.Keywords) > 0 {
		cfg.Platform.Apify.Keywords = m.Apify.Keywords
	}
	if len(m.Apify.Cities) > 0 {
		cfg.Platform.Apify.Cities = m.Apify.Cities
	}
	if m.Apify.Country != "" {
		cfg.Platform.Apify.Country = m.Apify.Country
	}
	if len(m.Apify.Platforms) > 0 {
		for _, p := range m.Apify.Platforms {
			if !supportedPlatforms[p] {
				return fmt.Errorf("meetup.apify.platforms: unsupported platform %q", p)
			}
		}
		cfg.Platform.Apify.Platforms = m.Apify.Platforms
	}
	if m.Apify.MaxItemsPerPlatform > 0 {
		cfg.Platform.Apify.MaxItemsPerPlatform = m.Apify.MaxItemsPerPlatform
	}
	if m.Apify.DateRangeMonths > 0 {
		cfg.Platform.Apify.DateRangeMonths = m.Apify.DateRangeMonths
	}

	if f.Pipeline.DefaultLocation != "" {
		cfg.Pipeline.DefaultLocation = f.Pipeline.DefaultLocation
	}
	if f.Pipeline.Region != "" {
		cfg.Pipeline.Region = f.Pipeline.Region
	}
	if f.Pipeline.Timezone != "" {
		cfg.Pipeline.Timezone = f.Pipeline.Timezone
	}
	if len(f.Pipeline.Sources) > 0 {
		cfg.Pipeline.EnabledSources = f.Pipeline.Sources
	}

	return nil
}
