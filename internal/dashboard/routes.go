package dashboard

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/pulse/internal/bus"
)

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleDataFile serves a JSON artifact from the data directory verbatim.
// A missing artifact is a 404, not an error: the pipeline may simply not
// have produced it yet.
func handleDataFile(dataDir, name string) gin.HandlerFunc {
	path := filepath.Join(dataDir, name)
	return func(c *gin.Context) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": name + " not generated yet"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

func handleBusStats(store bus.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
