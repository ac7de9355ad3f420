// Package config provides configuration parsing for the registry server.
//
// The configuration is stored in uireg.json at the project root.
// This package handles loading, saving, validating and environment overrides.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 8080,
//	    "publicURL": "https://registry.example.com"
//	  },
//	  "database": { "path": "data/registry.db" },
//	  "storage": {
//	    "driver": "s3",
//	    "bucket": "components",
//	    "region": "eu-west-1"
//	  },
//	  "search": { "cacheTTL": "1m", "sectionsFile": "sections.yaml" },
//	  "submission": { "slugDebounce": "500ms", "idleTimeout": "30m" },
//	  "preview": {
//	    "baseline": { "react": "^18.0.0", "react-dom": "^18.0.0" }
//	  },
//	  "versions": { "declared": { "lucide-react": "^0.400.0" } },
//	  "log": { "level": "info", "format": "text" }
//	}
//
// Secrets are not stored in the file. They are read from the environment:
// UIREG_S3_ACCESS_KEY_ID, UIREG_S3_SECRET_ACCESS_KEY, UIREG_SEARCH_API_KEY.
// UIREG_PORT and UIREG_DATABASE_PATH override the corresponding fields.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
