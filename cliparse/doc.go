// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Cobra commands register NewFlagSet on their persistent flags and call Load
with the parsed set instead.

# Sources

Values are resolved in increasing precedence:

 1. built-in defaults (struct tags)
 2. the YAML policy file (vote-splitting defaults only)
 3. .env, loaded with godotenv without overriding the real environment
 4. environment variables, read with envconfig
 5. CLI flags that were explicitly set

# CLI Flags and Environment Variables

	-p, --port            PORT                  (default 3318)
	-d, --database-url    DATABASE_URL          (required)
	-t, --database-type   DATABASE_TYPE         sqlite | postgres (default sqlite)
	--admin-key           ADMIN_KEY             (required)
	--ip-hash-salt        IP_HASH_SALT          (defaults to ADMIN_KEY)
	--log-level           LOG_LEVEL             debug | info | warn | error
	--log-format          LOG_FORMAT            text | json
	--policy-file         POLICY_FILE
	--rate-limit-rps      RATE_LIMIT_RPS        (default 20)
	--rate-limit-burst    RATE_LIMIT_BURST      (default 40)
	--cors-origins        CORS_ALLOWED_ORIGINS  comma separated (default *)

# Policy File

	groupBounds: within_global   # or independent
	defaults:
	  isEnabled: false
	  minProxyVoters: 2
	  maxProxyVoters: 20
	  minIndividualVotes: 1
	  maxIndividualVotes: 3

Omitted keys keep their defaults. The merged policy is validated before
ParseFlags returns.
*/
package cliparse
