//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	chathandler "securechat/internal/chat/handler"
	"securechat/internal/chat/repository"
	"securechat/internal/chat/service"
	"securechat/internal/dbmongo"
	"securechat/internal/user"
)

// InitializeApplication builds the full dependency graph. The cleanup closes
// the MongoDB connection.
func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideDatabase,
		ProvideMongo,
		ProvideAvatarStorage,
		ProvideKeyProvider,
		repository.NewChatRepository,
		service.NewChatService,
		user.NewUserRepository,
		user.NewUserService,
		user.NewUserHandler,
		chathandler.NewChatHandler,
		wire.Bind(new(chathandler.UserDirectory), new(user.UserRepository)),
		wire.Bind(new(user.AvatarStore), new(*dbmongo.AvatarStorage)),
		wire.Bind(new(user.AvatarReader), new(*dbmongo.AvatarStorage)),
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
