package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openharvest/harvestmux/fetcher"
	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
	"github.com/openharvest/harvestmux/notify"
	"github.com/openharvest/harvestmux/store"
	"github.com/openharvest/harvestmux/utils/dotenv"
	Flag "github.com/openharvest/harvestmux/utils/flag"
	Logger "github.com/openharvest/harvestmux/utils/log"
)

func init() {
	Logger.Log.Info("harvester initialized")
}

// One invocation harvests every due source once. Jobs for different sources
// share no mutable state and run concurrently.
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

	h := &harvester.Harvester{
		Store:    st,
		Fetcher:  fetcher.NewSourceFetcher(),
		Notifier: notify.EmailNotifier{},
	}

	sources, err := st.ListHarvestSources()
	if err != nil {
		Logger.Log.Fatal("cannot list harvest sources: ", err)
	}

	now := time.Now().UTC()
	var wg sync.WaitGroup
	for ind := range sources {
		source := sources[ind]

		lastJob, err := st.LastJobDate(source.Id)
		if err != nil {
			Logger.Log.Error("cannot resolve last job for source ", source.Id, ": ", err)
			continue
		}
		if !harvester.IsDue(&source, lastJob, now) {
			continue
		}

		job := &model.HarvestJob{
			Id:              uuid.New().String(),
			DateCreated:     now,
			HarvestSourceId: source.Id,
			Status:          model.JobStatusNew,
		}
		if err := st.CreateHarvestJob(job); err != nil {
			Logger.Log.Error("cannot create job for source ", source.Id, ": ", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.RunJob(context.Background(), job.Id); err != nil {
				Logger.Log.Errorf("fail to run harvest job %s: %s", job.Id, err)
			}
		}()
	}
	wg.Wait()

	Logger.Log.Info("harvester run finished")
}
