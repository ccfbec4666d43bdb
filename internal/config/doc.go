// Package config loads and validates philjs.json.
//
// Every field is optional; New returns a fully usable default
// configuration and Load layers the file's values on top. Durations are
// written as Go duration strings ("60s", "5m").
//
//	{
//	  "name": "my-site",
//	  "port": 3000,
//	  "cache": {"adapter": "badger", "badgerPath": ".philjs/cache"},
//	  "isr": {"interval": "60s", "swrWindow": "5m"}
//	}
package config
