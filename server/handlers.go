// Package server is the HTTP surface used to trigger and inspect harvests.
// The engine never depends on it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
	"github.com/openharvest/harvestmux/store"
	Logger "github.com/openharvest/harvestmux/utils/log"
)

type Server struct {
	Store     store.Store
	Harvester *harvester.Harvester
}

func (s *Server) Register(router *gin.Engine) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/harvest_sources", s.listSources)
	router.POST("/harvest_sources/:id/harvest", s.triggerHarvest)
	router.GET("/harvest_jobs/:id", s.getJob)
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.Store.ListHarvestSources()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sources)
}

// triggerHarvest creates a new job for the source and runs it in the
// background. Mutual exclusion is enforced by the job state machine, not
// here: a second trigger while a job is in progress yields a job that fails
// to acquire and stays new.
func (s *Server) triggerHarvest(c *gin.Context) {
	source, err := s.Store.GetHarvestSource(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	job := &model.HarvestJob{
		Id:              uuid.New().String(),
		DateCreated:     time.Now().UTC(),
		HarvestSourceId: source.Id,
		Status:          model.JobStatusNew,
	}
	if err := s.Store.CreateHarvestJob(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go func() {
		if err := s.Harvester.RunJob(context.Background(), job.Id); err != nil {
			Logger.Log.WithField("job_id", job.Id).Error("harvest run failed: ", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.Id})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.Store.GetHarvestJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	jobErrors, err := s.Store.ListJobErrors(job.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	records, err := s.Store.ListJobRecords(job.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                job.Id,
		"harvest_source_id": job.HarvestSourceId,
		"status":            job.Status,
		"date_created":      job.DateCreated,
		"errors":            jobErrors,
		"records":           records,
	})
}
