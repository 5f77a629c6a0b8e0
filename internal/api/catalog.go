package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

// CatalogHandler serves environments, projects, parameters, values, templates
// and users. Every mutation is audited by the service.
type CatalogHandler struct {
	svc CatalogService
	log *logrus.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(svc CatalogService, log *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, log: log}
}

// respondList writes {"data": items}, or the mapped error.
func respondList[T any](c *gin.Context, log *logrus.Logger, items []T, err error, doing string) {
	if err != nil {
		respondServiceError(c, log, err, doing)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// respondCreated writes the created object with 201, or the mapped error.
func respondCreated[T any](c *gin.Context, log *logrus.Logger, obj *T, err error, doing string) {
	if err != nil {
		respondServiceError(c, log, err, doing)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

// respondDeleted writes 204, or the mapped error.
func respondDeleted(c *gin.Context, log *logrus.Logger, err error, doing string) {
	if err != nil {
		respondServiceError(c, log, err, doing)
		return
	}
	c.Status(http.StatusNoContent)
}

// bind decodes the JSON body into req, responding on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return false
	}
	return true
}

// ListEnvironments handles GET /api/v1/environments.
func (h *CatalogHandler) ListEnvironments(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}
	envs, err := h.svc.ListEnvironments(c.Request.Context(), sess)
	respondList(c, h.log, envs, err, "listing environments")
}

// CreateEnvironment handles POST /api/v1/environments.
func (h *CatalogHandler) CreateEnvironment(c *gin.Context) {
	var req models.CreateNamedRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	env, err := h.svc.CreateEnvironment(c.Request.Context(), sess, req)
	respondCreated(c, h.log, env, err, "creating environment")
}

// DeleteEnvironment handles DELETE /api/v1/environments/:name.
func (h *CatalogHandler) DeleteEnvironment(c *gin.Context) {
	names, ok := pathNames(c, "name")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteEnvironment(c.Request.Context(), sess, names[0]), "deleting environment")
}

// ListProjects handles GET /api/v1/projects.
func (h *CatalogHandler) ListProjects(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}
	projects, err := h.svc.ListProjects(c.Request.Context(), sess)
	respondList(c, h.log, projects, err, "listing projects")
}

// CreateProject handles POST /api/v1/projects.
func (h *CatalogHandler) CreateProject(c *gin.Context) {
	var req models.CreateNamedRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), sess, req)
	respondCreated(c, h.log, p, err, "creating project")
}

// DeleteProject handles DELETE /api/v1/projects/:project.
func (h *CatalogHandler) DeleteProject(c *gin.Context) {
	names, ok := pathNames(c, "project")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteProject(c.Request.Context(), sess, names[0]), "deleting project")
}

// ListParameters handles GET /api/v1/projects/:project/parameters.
func (h *CatalogHandler) ListParameters(c *gin.Context) {
	names, ok := pathNames(c, "project")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	params, err := h.svc.ListParameters(c.Request.Context(), sess, names[0])
	respondList(c, h.log, params, err, "listing parameters")
}

// CreateParameter handles POST /api/v1/projects/:project/parameters.
func (h *CatalogHandler) CreateParameter(c *gin.Context) {
	names, ok := pathNames(c, "project")
	if !ok {
		return
	}
	var req models.CreateParameterRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	p, err := h.svc.CreateParameter(c.Request.Context(), sess, names[0], req)
	respondCreated(c, h.log, p, err, "creating parameter")
}

// DeleteParameter handles DELETE /api/v1/projects/:project/parameters/:name.
func (h *CatalogHandler) DeleteParameter(c *gin.Context) {
	names, ok := pathNames(c, "project", "name")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteParameter(c.Request.Context(), sess, names[0], names[1]), "deleting parameter")
}

// ListValues handles GET /api/v1/projects/:project/parameters/:name/values.
func (h *CatalogHandler) ListValues(c *gin.Context) {
	names, ok := pathNames(c, "project", "name")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	values, err := h.svc.ListValues(c.Request.Context(), sess, names[0], names[1])
	respondList(c, h.log, values, err, "listing values")
}

// SetValue handles PUT /api/v1/projects/:project/parameters/:name/values/:env.
func (h *CatalogHandler) SetValue(c *gin.Context) {
	names, ok := pathNames(c, "project", "name", "env")
	if !ok {
		return
	}
	var req models.SetValueRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	v, err := h.svc.SetValue(c.Request.Context(), sess, names[0], names[1], names[2], req)
	if err != nil {
		respondServiceError(c, h.log, err, "setting value")
		return
	}
	c.JSON(http.StatusOK, v)
}

// DeleteValue handles DELETE /api/v1/projects/:project/parameters/:name/values/:env.
func (h *CatalogHandler) DeleteValue(c *gin.Context) {
	names, ok := pathNames(c, "project", "name", "env")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteValue(c.Request.Context(), sess, names[0], names[1], names[2]), "deleting value")
}

// ListTemplates handles GET /api/v1/projects/:project/templates.
func (h *CatalogHandler) ListTemplates(c *gin.Context) {
	names, ok := pathNames(c, "project")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	templates, err := h.svc.ListTemplates(c.Request.Context(), sess, names[0])
	respondList(c, h.log, templates, err, "listing templates")
}

// CreateTemplate handles POST /api/v1/projects/:project/templates.
func (h *CatalogHandler) CreateTemplate(c *gin.Context) {
	names, ok := pathNames(c, "project")
	if !ok {
		return
	}
	var req models.CreateTemplateRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	t, err := h.svc.CreateTemplate(c.Request.Context(), sess, names[0], req)
	respondCreated(c, h.log, t, err, "creating template")
}

// DeleteTemplate handles DELETE /api/v1/projects/:project/templates/:name.
func (h *CatalogHandler) DeleteTemplate(c *gin.Context) {
	names, ok := pathNames(c, "project", "name")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteTemplate(c.Request.Context(), sess, names[0], names[1]), "deleting template")
}

// ListUsers handles GET /api/v1/users.
func (h *CatalogHandler) ListUsers(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}
	users, err := h.svc.ListUsers(c.Request.Context(), sess)
	respondList(c, h.log, users, err, "listing users")
}

// CreateUser handles POST /api/v1/users. The response carries the new API
// key, which is not retrievable later.
func (h *CatalogHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !bind(c, &req) {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	u, err := h.svc.CreateUser(c.Request.Context(), sess, req)
	respondCreated(c, h.log, u, err, "creating user")
}

// DeleteUser handles DELETE /api/v1/users/:name.
func (h *CatalogHandler) DeleteUser(c *gin.Context) {
	names, ok := pathNames(c, "name")
	if !ok {
		return
	}
	sess, ok := getSession(c)
	if !ok {
		return
	}
	respondDeleted(c, h.log, h.svc.DeleteUser(c.Request.Context(), sess, names[0]), "deleting user")
}
