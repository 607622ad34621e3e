package gc

import "github.com/bnclabs/golog"

func init() {
	setts := map[string]interface{}{
		"log.level": "ignore",
	}
	log.SetLogger(nil, setts)
}
