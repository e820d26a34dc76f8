package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) listProfiles(c *gin.Context) {
	records, err := s.profiles.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) getProfile(c *gin.Context) {
	record, err := s.profiles.GetByID(c.Request.Context(), types.ProfileIdType(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) createProfile(c *gin.Context) {
	var req profile.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.ErrInvalid, "Malformed request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, types.NewError(types.ErrInvalid, "name is required"))
		return
	}
	record, err := s.profiles.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// updateProfile forwards the body as a patch document, so partial updates
// keep whatever fields the caller omitted.
func (s *Server) updateProfile(c *gin.Context) {
	patch, err := io.ReadAll(c.Request.Body)
	if err != nil || len(patch) == 0 {
		respondError(c, types.NewError(types.ErrInvalid, "A JSON patch body is required"))
		return
	}
	record, err := s.profiles.Update(c.Request.Context(), types.ProfileIdType(c.Param("id")), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) deleteProfile(c *gin.Context) {
	id := types.ProfileIdType(c.Param("id"))
	if err := s.profiles.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	s.sessions.Deactivate(id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) searchProfiles(c *gin.Context) {
	records, err := s.profiles.Search(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// listActiveProfiles resolves the active session ids against the profile
// store. Ids the store no longer knows are skipped rather than failing the
// whole listing.
func (s *Server) listActiveProfiles(c *gin.Context) {
	ctx := c.Request.Context()
	active := s.sessions.Active()
	records := make([]profile.Record, 0, len(active))
	for _, id := range active {
		record, err := s.profiles.GetByID(ctx, id)
		if err != nil {
			logging.Debug(ctx, "active profile not resolvable",
				zap.String("profile_id", string(id)),
				zap.Error(err),
			)
			continue
		}
		records = append(records, *record)
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(records),
		"profiles": records,
	})
}

func (s *Server) activateProfile(c *gin.Context) {
	id := types.ProfileIdType(c.Param("id"))
	s.sessions.Activate(id)
	c.JSON(http.StatusOK, gin.H{
		"profileId": id,
		"active":    true,
	})
}

func (s *Server) deactivateProfile(c *gin.Context) {
	id := types.ProfileIdType(c.Param("id"))
	s.sessions.Deactivate(id)
	c.JSON(http.StatusOK, gin.H{
		"profileId": id,
		"active":    false,
	})
}
