package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mediadrop/portal/internal/model"
	"mediadrop/portal/internal/pkg/auth"
	"mediadrop/portal/internal/pkg/httputils"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/service"
	"mediadrop/portal/internal/ws"
)

type AdminHandler struct {
	clients  repository.ClientRepository
	projects repository.ProjectRepository
	links    repository.UploadLinkRepository
	tracker  *service.Tracker
	hub      *ws.Hub

	adminUsername string
	adminPassHash string
}

func NewAdminHandler(clients repository.ClientRepository, projects repository.ProjectRepository, links repository.UploadLinkRepository, tracker *service.Tracker, hub *ws.Hub, adminUsername, adminPassHash string) *AdminHandler {
	return &AdminHandler{
		clients:       clients,
		projects:      projects,
		links:         links,
		tracker:       tracker,
		hub:           hub,
		adminUsername: adminUsername,
		adminPassHash: adminPassHash,
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.login).Methods("POST", "OPTIONS")
	router.HandleFunc("/clients", RequireAuth(h.createClient)).Methods("POST", "OPTIONS")
	router.HandleFunc("/clients", RequireAuth(h.listClients)).Methods("GET", "OPTIONS")
	router.HandleFunc("/clients/{clientId}/projects", RequireAuth(h.createProject)).Methods("POST", "OPTIONS")
	router.HandleFunc("/projects", RequireAuth(h.listProjects)).Methods("GET", "OPTIONS")
	router.HandleFunc("/projects/{projectId}/upload-links", RequireAuth(h.createUploadLink)).Methods("POST", "OPTIONS")
	router.HandleFunc("/ws", h.dashboard).Methods("GET")
}

type TokenResponse struct {
	Token string `json:"token"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// @Summary Login
// @Description Authenticate the portal operator
// @ID login
// @Accept json
// @Produce json
// @Success 201 {object} TokenResponse
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 409 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Param loginData body LoginRequest true "Login data"
// @Router /login [post]
func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var request LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	if request.Username == "" || request.Password == "" {
		httputils.ResponseError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if request.Username != h.adminUsername || !auth.CheckPasswordHash(request.Password, h.adminPassHash) {
		httputils.ResponseError(w, http.StatusConflict, "Wrong username or password")
		return
	}

	token, err := auth.GenerateToken(request.Username)
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, TokenResponse{Token: token})
}

type CreateClientRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// @Summary Create client
// @Description Register a client the portal delivers files for
// @ID create-client
// @Accept json
// @Produce json
// @Success 201 {object} model.Client
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Param clientData body CreateClientRequest true "Client data"
// @Router /clients [post]
func (h *AdminHandler) createClient(w http.ResponseWriter, r *http.Request) {
	var request CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	if request.Name == "" {
		httputils.ResponseError(w, http.StatusBadRequest, "Client name is required")
		return
	}

	code := request.Code
	if code == "" {
		code = strings.ToLower(strings.ReplaceAll(request.Name, " ", "-"))
	}

	client := &model.Client{Name: request.Name, Code: code}
	if err := h.clients.Create(client); err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to create client")
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, client)
}

// @Summary List clients
// @ID list-clients
// @Produce json
// @Success 200 {object} []model.Client
// @Failure 401 {object} httputils.ErrorResponse
// @Router /clients [get]
func (h *AdminHandler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.FindAll()
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to list clients")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, clients)
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// @Summary Create project
// @Description Create a delivery project under a client
// @ID create-project
// @Accept json
// @Produce json
// @Success 201 {object} model.Project
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Param clientId path int true "Client ID"
// @Param projectData body CreateProjectRequest true "Project data"
// @Router /clients/{clientId}/projects [post]
func (h *AdminHandler) createProject(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.Atoi(mux.Vars(r)["clientId"])
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Failed to parse client ID")
		return
	}

	var request CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	if request.Name == "" {
		httputils.ResponseError(w, http.StatusBadRequest, "Project name is required")
		return
	}

	if _, err := h.clients.FindByID(uint(clientID)); err != nil {
		httputils.ResponseError(w, http.StatusNotFound, "No such client")
		return
	}

	project := &model.Project{
		Name:        request.Name,
		Description: request.Description,
		ClientID:    uint(clientID),
	}
	if err := h.projects.Create(project); err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, project)
}

// @Summary List projects
// @ID list-projects
// @Produce json
// @Success 200 {object} []model.Project
// @Failure 401 {object} httputils.ErrorResponse
// @Router /projects [get]
func (h *AdminHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.FindAll()
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, projects)
}

type CreateUploadLinkRequest struct {
	ExpiresInHours int  `json:"expiresInHours"`
	MaxUses        *int `json:"maxUses"`
}

// @Summary Create upload link
// @Description Issue a time-limited upload token for a project
// @ID create-upload-link
// @Accept json
// @Produce json
// @Success 201 {object} model.UploadLink
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Param projectId path int true "Project ID"
// @Param linkData body CreateUploadLinkRequest true "Link parameters"
// @Router /projects/{projectId}/upload-links [post]
func (h *AdminHandler) createUploadLink(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Failed to parse project ID")
		return
	}

	var request CreateUploadLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	if _, err := h.projects.FindByID(uint(projectID)); err != nil {
		httputils.ResponseError(w, http.StatusNotFound, "No such project")
		return
	}

	hours := request.ExpiresInHours
	if hours <= 0 {
		hours = 7 * 24
	}

	link := &model.UploadLink{
		Token:     newLinkToken(),
		ProjectID: uint(projectID),
		ExpiresAt: time.Now().Add(time.Duration(hours) * time.Hour),
		MaxUses:   request.MaxUses,
	}
	if err := h.links.Create(link); err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to create upload link")
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, link)
}

// newLinkToken builds a short uppercase token that is easy to read back
// over the phone, unlike a full lowercase UUID.
func newLinkToken() string {
	parts := strings.SplitN(uuid.NewString(), "-", 5)
	return strings.ToUpper(strings.Join(parts[:4], "-"))
}

// dashboard upgrades the connection and streams ledger updates. The bearer
// token may come through the Authorization header or a token query parameter,
// since browsers cannot set headers on WebSocket upgrades.
func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if _, err := auth.ValidateToken(tokenStr); err != nil {
		httputils.ResponseError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("admin: websocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(r.Context(), conn)
	h.hub.Register(client, h.tracker.ListActive())

	go func() {
		defer h.hub.Unregister(client)
		if err := client.WritePump(); err != nil {
			log.Printf("admin: websocket write error: %v", err)
		}
	}()
	go client.ReadPump()
}
