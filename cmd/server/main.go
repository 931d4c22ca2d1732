package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openharvest/harvestmux/fetcher"
	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/notify"
	"github.com/openharvest/harvestmux/server"
	"github.com/openharvest/harvestmux/store"
	"github.com/openharvest/harvestmux/utils/dotenv"
	Flag "github.com/openharvest/harvestmux/utils/flag"
	Logger "github.com/openharvest/harvestmux/utils/log"
)

func init() {
	Logger.Log.Info("api server initialized")
}

func main() {
	Flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	db, err := store.GetDBConnection()
	if err != nil {
		Logger.Log.Fatal("cannot connect to database: ", err)
	}
	if err := store.DatabaseSetupAndMigration(db); err != nil {
		Logger.Log.Fatal("cannot migrate database: ", err)
	}

	st := store.NewDB(db)
	srv := &server.Server{
		Store: st,
		Harvester: &harvester.Harvester{
			Store:    st,
			Fetcher:  fetcher.NewSourceFetcher(),
			Notifier: notify.EmailNotifier{},
		},
	}

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	srv.Register(router)

	Logger.Log.Info("api server starts up")
	router.Run(":8080")
}
