// Package config provides configuration parsing for hookrun.
//
// The configuration is stored in hooks.json. This package handles loading,
// saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  },
//	  "host": {
//	    "maxPasses": 500,
//	    "debug": false
//	  },
//	  "inspector": {
//	    "addr": "localhost:7070"
//	  },
//	  "telemetry": {
//	    "namespace": "myapp",
//	    "tracerName": "myapp"
//	  },
//	  "export": {
//	    "bucket": "event-logs",
//	    "prefix": "hooks/events",
//	    "region": "eu-west-1"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inspector:", cfg.Inspector.Addr)
package config
