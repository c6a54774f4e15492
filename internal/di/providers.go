// Package di assembles the application with google/wire. wire_gen.go is the
// generated injector; regenerate with `wire ./internal/di` after changing
// providers.
package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	chathandler "securechat/internal/chat/handler"
	"securechat/internal/config"
	"securechat/internal/crypto"
	"securechat/internal/dbmongo"
	"securechat/internal/dbmysql"
	"securechat/internal/user"
)

// Application holds everything main needs to run the server.
type Application struct {
	Config      *config.Config
	DB          *gorm.DB
	Mongo       *dbmongo.MongoClient
	ChatHandler *chathandler.ChatHandler
	UserHandler *user.UserHandler
}

func ProvideConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	return dbmysql.NewMySQL(cfg)
}

func ProvideMongo(cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	client, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}
	return client, cleanup, nil
}

func ProvideAvatarStorage(client *dbmongo.MongoClient) *dbmongo.AvatarStorage {
	return dbmongo.NewAvatarStorage(client)
}

func ProvideKeyProvider(cfg *config.Config) *crypto.KeyProvider {
	return crypto.NewKeyProvider(cfg.Encryption.MasterKey)
}
