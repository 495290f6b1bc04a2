package main

import (
	"taskify/internal/blob"
	"taskify/internal/config"
	"taskify/internal/store"
	"taskify/internal/worker"
)

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Driver:    cfg.Storage.Driver,
		MongoURI:  cfg.Storage.MongoURI,
		MongoDB:   cfg.Storage.MongoDB,
		OpTimeout: cfg.Storage.OpTimeout,
	}
}

func blobConfig(cfg *config.Config) blob.Config {
	return blob.Config{
		Driver:      cfg.Export.Driver,
		FSRoot:      cfg.Export.Dir,
		S3Bucket:    cfg.Export.S3Bucket,
		S3Region:    cfg.Export.S3Region,
		S3Endpoint:  cfg.Export.S3Endpoint,
		S3PathStyle: cfg.Export.S3PathStyle,

		S3AccessKeyID:     cfg.Export.S3AccessKey,
		S3SecretAccessKey: cfg.Export.S3SecretKey,
		S3SessionToken:    cfg.Export.S3Token,
	}
}

// primaryQueue is where new repair and export jobs land.
func primaryQueue(cfg *config.Config) string {
	if len(cfg.Worker.Queues) > 0 {
		return cfg.Worker.Queues[0]
	}
	return worker.DefaultQueue
}
