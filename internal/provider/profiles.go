package provider

import (
	"time"

	"github.com/koustreak/dbroute/internal/database"
)

// Canonical region tags shared by every alias table.
const (
	RegionUSEast      = "us-east"
	RegionUSWest      = "us-west"
	RegionEUWest      = "eu-west"
	RegionEUCentral   = "eu-central"
	RegionAPSouth     = "ap-south"
	RegionAPSoutheast = "ap-southeast"
	RegionAPNortheast = "ap-northeast"
	RegionSAEast      = "sa-east"
)

// awsAliases are the AWS region spellings most managed Postgres and MySQL
// providers reuse.
var awsAliases = []Alias{
	{RegionUSEast, []string{"us-east-1", "us-east-2", "aws-us-east-1", "aws-us-east-2"}},
	{RegionUSWest, []string{"us-west-1", "us-west-2", "aws-us-west-1", "aws-us-west-2"}},
	{RegionEUWest, []string{"eu-west-1", "eu-west-2", "eu-west-3", "aws-eu-west-1", "aws-eu-west-2"}},
	{RegionEUCentral, []string{"eu-central-1", "aws-eu-central-1"}},
	{RegionAPSouth, []string{"ap-south-1", "aws-ap-south-1"}},
	{RegionAPSoutheast, []string{"ap-southeast-1", "ap-southeast-2", "aws-ap-southeast-1", "aws-ap-southeast-2"}},
	{RegionAPNortheast, []string{"ap-northeast-1", "ap-northeast-2", "aws-ap-northeast-1"}},
	{RegionSAEast, []string{"sa-east-1", "aws-sa-east-1"}},
}

// flyAliases map Fly.io airport codes.
var flyAliases = []Alias{
	{RegionUSEast, []string{"iad", "ewr", "bos", "atl", "mia", "yyz"}},
	{RegionUSWest, []string{"sjc", "lax", "sea", "den", "dfw", "ord"}},
	{RegionEUWest, []string{"lhr", "cdg", "ams", "mad"}},
	{RegionEUCentral, []string{"fra", "arn", "waw", "otp"}},
	{RegionAPSouth, []string{"bom", "maa"}},
	{RegionAPSoutheast, []string{"sin", "syd"}},
	{RegionAPNortheast, []string{"nrt", "hkg"}},
	{RegionSAEast, []string{"gru", "gig", "scl", "eze"}},
}

// railwayAliases map Railway's region identifiers.
var railwayAliases = []Alias{
	{RegionUSEast, []string{"us-east4", "us-east4-eqdc4a"}},
	{RegionUSWest, []string{"us-west1", "us-west2"}},
	{RegionEUWest, []string{"europe-west4", "europe-west4-drams3a"}},
	{RegionAPSoutheast, []string{"asia-southeast1", "asia-southeast1-eqsg3a"}},
}

// Neon serverless Postgres. Its pooler endpoints front PgBouncer, so client
// pools stay small and short-lived.
var Neon = &Profile{
	Name:  "neon",
	Match: hostHasSuffix(".neon.tech"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       10,
			IdleTimeout:    30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MaxLifetime:    5 * time.Minute,
			TLS:            database.TLSRequire,
		}
	},
	Aliases: awsAliases,
}

// Supabase Postgres, direct or through the Supavisor pooler.
var Supabase = &Profile{
	Name:  "supabase",
	Match: hostHasSuffix(".supabase.co", ".supabase.com"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       15,
			IdleTimeout:    60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MaxLifetime:    15 * time.Minute,
			TLS:            database.TLSRequire,
		}
	},
	Aliases: awsAliases,
}

// PlanetScale MySQL.
var PlanetScale = &Profile{
	Name:  "planetscale",
	Match: hostHasSuffix(".psdb.cloud"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       20,
			IdleTimeout:    2 * time.Minute,
			ConnectTimeout: 10 * time.Second,
			MaxLifetime:    30 * time.Minute,
			TLS:            database.TLSVerifyFull,
		}
	},
	Aliases: awsAliases,
}

// RDS covers Amazon RDS and Aurora endpoints.
var RDS = &Profile{
	Name:  "rds",
	Match: hostHasSuffix(".rds.amazonaws.com"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       25,
			MinConns:       2,
			IdleTimeout:    5 * time.Minute,
			ConnectTimeout: 5 * time.Second,
			MaxLifetime:    30 * time.Minute,
			TLS:            database.TLSRequire,
		}
	},
	Aliases: awsAliases,
}

// Fly.io Postgres reached over Flycast, which is already encrypted by
// WireGuard. Bare ".internal" hosts are not matched: AWS, GCP and private
// DNS zones use the same suffix.
var Fly = &Profile{
	Name:  "fly",
	Match: hostHasSuffix(".flycast", ".fly.dev"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       20,
			MinConns:       1,
			IdleTimeout:    5 * time.Minute,
			ConnectTimeout: 5 * time.Second,
			MaxLifetime:    30 * time.Minute,
			TLS:            database.TLSDisable,
		}
	},
	Aliases: flyAliases,
}

// Railway Postgres, public proxy or private network.
var Railway = &Profile{
	Name:  "railway",
	Match: hostHasSuffix(".railway.app", ".rlwy.net", ".railway.internal"),
	Pool: func(string) database.PoolConfig {
		return database.PoolConfig{
			MaxConns:       15,
			IdleTimeout:    2 * time.Minute,
			ConnectTimeout: 10 * time.Second,
			MaxLifetime:    30 * time.Minute,
			TLS:            database.TLSRequire,
		}
	},
	Aliases: railwayAliases,
}

// Generic is used when no provider matches. TLS is required everywhere but
// local development.
var Generic = &Profile{
	Name: "generic",
	Pool: func(env string) database.PoolConfig {
		cfg := database.DefaultPoolConfig()
		cfg.TLS = database.TLSRequire
		if IsLocalEnv(env) {
			cfg.TLS = database.TLSDisable
		}
		return cfg
	},
	Aliases: awsAliases,
}
