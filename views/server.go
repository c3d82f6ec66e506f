package views

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/models"
	"github.com/tmorand/threddit/session"
	"github.com/tmorand/threddit/votes"
)

// Server exposes the views over HTTP and dispatches user intents into them.
// Each view instance owns its state for as long as it is open; entering a
// view (the GET endpoints) always refetches from the backend.
type Server struct {
	client   *api.Client
	session  *session.Session
	log      *logrus.Logger
	pageSize int

	mutex       sync.Mutex
	postList    *PostListView
	detailViews map[int64]*PostDetailView
	communities map[string]*CommunityView
}

// NewServer creates the view server
func NewServer(client *api.Client, sess *session.Session, pageSize int, log *logrus.Logger) *Server {
	return &Server{
		client:      client,
		session:     sess,
		log:         log,
		pageSize:    pageSize,
		postList:    NewPostListView(client, sess, pageSize, log),
		detailViews: make(map[int64]*PostDetailView),
		communities: make(map[string]*CommunityView),
	}
}

// RegisterRoutes attaches every view route to the echo instance
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/login", s.handleLogin)
	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/logout", s.handleLogout)
	e.GET("/auth/me", s.handleMe)

	e.GET("/views/posts", s.handlePostList)
	e.POST("/views/posts", s.handleCreatePost)
	e.DELETE("/views/posts/:id", s.handleDeletePost)
	e.POST("/views/posts/:id/vote", s.handleVotePostInList)

	e.GET("/views/posts/:id", s.handlePostDetail)
	e.PUT("/views/posts/:id", s.handleEditPost)
	e.POST("/views/posts/:id/comments", s.handleAddComment)
	e.PUT("/views/posts/:id/sort", s.handleSetCommentSort)
	e.POST("/views/posts/:id/detail-vote", s.handleVotePostInDetail)
	e.POST("/views/posts/:id/comments/:commentId/replies", s.handleReply)
	e.PUT("/views/posts/:id/comments/:commentId", s.handleEditComment)
	e.DELETE("/views/posts/:id/comments/:commentId", s.handleDeleteComment)
	e.POST("/views/posts/:id/comments/:commentId/vote", s.handleVoteComment)

	e.GET("/views/communities", s.handleCommunityList)
	e.GET("/views/communities/popular", s.handlePopularCommunities)
	e.POST("/views/communities", s.handleCreateCommunity)
	e.GET("/views/communities/:name", s.handleCommunity)
	e.POST("/views/communities/:name/join", s.handleJoinCommunity)
	e.POST("/views/communities/:name/leave", s.handleLeaveCommunity)
}

// detailView returns the open detail view for a post, creating and loading
// one when the post is entered for the first time.
func (s *Server) detailView(c echo.Context, postID int64) (*PostDetailView, bool, error) {
	s.mutex.Lock()
	view, open := s.detailViews[postID]
	if !open {
		view = NewPostDetailView(s.client, s.session, s.pageSize, s.log)
		s.detailViews[postID] = view
	}
	s.mutex.Unlock()

	if !open {
		if err := view.Load(c.Request().Context(), postID); err != nil {
			s.mutex.Lock()
			delete(s.detailViews, postID)
			s.mutex.Unlock()
			return nil, false, err
		}
	}
	return view, open, nil
}

func (s *Server) communityView(c echo.Context, name string) (*CommunityView, bool, error) {
	s.mutex.Lock()
	view, open := s.communities[name]
	if !open {
		view = NewCommunityView(s.client, s.session, s.pageSize, s.log)
		s.communities[name] = view
	}
	s.mutex.Unlock()

	if !open {
		if err := view.Load(c.Request().Context(), name); err != nil {
			s.mutex.Lock()
			delete(s.communities, name)
			s.mutex.Unlock()
			return nil, false, err
		}
	}
	return view, open, nil
}

func (s *Server) handleLogin(c echo.Context) error {
	var creds api.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if creds.Username == "" || creds.Password == "" {
		return c.JSON(http.StatusBadRequest, errorBody("username and password are required"))
	}

	user, err := s.session.Login(c.Request().Context(), creds)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}

func (s *Server) handleRegister(c echo.Context) error {
	var reg api.Registration
	if err := c.Bind(&reg); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return c.JSON(http.StatusBadRequest, errorBody("username, email and password are required"))
	}

	user, err := s.session.Register(c.Request().Context(), reg)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"user": user})
}

func (s *Server) handleLogout(c echo.Context) error {
	s.session.Logout()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	user, ok := s.session.CurrentUser()
	if !ok {
		return c.JSON(http.StatusOK, map[string]interface{}{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"authenticated": true, "user": user})
}

func (s *Server) handlePostList(c echo.Context) error {
	sort := c.QueryParam("sort")
	page := intParam(c.QueryParam("page"), 0)
	query := c.QueryParam("query")

	if err := s.postList.Load(c.Request().Context(), sort, page, query); err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, s.postList.Render(c.Request().Context()))
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var req api.PostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, errorBody("title is required"))
	}

	post, err := s.postList.Create(c.Request().Context(), req)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusCreated, post)
}

func (s *Server) handleDeletePost(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.postList.Delete(c.Request().Context(), postID)

	s.mutex.Lock()
	delete(s.detailViews, postID)
	s.mutex.Unlock()

	return c.JSON(http.StatusOK, s.postList.Render(c.Request().Context()))
}

func (s *Server) handleVotePostInList(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	direction, err := voteDirection(c)
	if err != nil {
		return err
	}

	s.postList.Vote(c.Request().Context(), postID, direction)
	return c.JSON(http.StatusOK, s.postList.Render(c.Request().Context()))
}

func (s *Server) handlePostDetail(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	view, open, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	// re-entering an open view refetches; no cross-visit caching
	if open {
		if err := view.Load(c.Request().Context(), postID); err != nil {
			return c.JSON(statusFor(err), errorBody(err.Error()))
		}
	}

	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleEditPost(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req api.PostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, errorBody("title is required"))
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.EditPost(c.Request().Context(), req)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleSetCommentSort(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		Sort string `json:"sort"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	if err := view.SetSort(c.Request().Context(), body.Sort); err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleAddComment(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if body.Content == "" {
		return c.JSON(http.StatusBadRequest, errorBody("content is required"))
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.AddComment(c.Request().Context(), body.Content)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleReply(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	parentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if body.Content == "" {
		return c.JSON(http.StatusBadRequest, errorBody("content is required"))
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.Reply(c.Request().Context(), parentID, body.Content)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleEditComment(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if body.Content == "" {
		return c.JSON(http.StatusBadRequest, errorBody("content is required"))
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.EditComment(c.Request().Context(), commentID, body.Content)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}

	var parentID *int64
	if raw := c.QueryParam("parentId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid parentId"))
		}
		parentID = &parsed
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.DeleteComment(c.Request().Context(), commentID, parentID)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleVotePostInDetail(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	direction, err := voteDirection(c)
	if err != nil {
		return err
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.VotePost(c.Request().Context(), direction)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleVoteComment(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}
	direction, err := voteDirection(c)
	if err != nil {
		return err
	}

	view, _, err := s.detailView(c, postID)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	view.VoteComment(c.Request().Context(), commentID, direction)
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleCommunityList(c echo.Context) error {
	page := intParam(c.QueryParam("page"), 0)
	query := c.QueryParam("query")

	var result models.Page[models.Community]
	var err error
	if query != "" {
		result, err = s.client.SearchCommunities(c.Request().Context(), query, page, s.pageSize)
	} else {
		result, err = s.client.Communities(c.Request().Context(), page, s.pageSize)
	}
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	return c.JSON(http.StatusOK, CommunityListVM{
		Page:        page,
		HasMore:     result.HasMore,
		Communities: result.Items,
	})
}

// handlePopularCommunities serves the most-joined communities sidebar
func (s *Server) handlePopularCommunities(c echo.Context) error {
	page := intParam(c.QueryParam("page"), 0)

	result, err := s.client.PopularCommunities(c.Request().Context(), page, s.pageSize)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}

	return c.JSON(http.StatusOK, CommunityListVM{
		Page:        page,
		HasMore:     result.HasMore,
		Communities: result.Items,
	})
}

func (s *Server) handleCreateCommunity(c echo.Context) error {
	var req api.CommunityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, errorBody("name is required"))
	}
	if user, ok := s.session.CurrentUser(); ok {
		req.UserID = user.ID
	} else {
		return c.JSON(http.StatusUnauthorized, errorBody("login required"))
	}

	community, err := s.client.CreateCommunity(c.Request().Context(), req)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusCreated, community)
}

func (s *Server) handleCommunity(c echo.Context) error {
	name := c.Param("name")

	view, open, err := s.communityView(c, name)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	if open {
		if err := view.Load(c.Request().Context(), name); err != nil {
			return c.JSON(statusFor(err), errorBody(err.Error()))
		}
	}
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleJoinCommunity(c echo.Context) error {
	view, _, err := s.communityView(c, c.Param("name"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	view.Join(c.Request().Context())
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

func (s *Server) handleLeaveCommunity(c echo.Context) error {
	view, _, err := s.communityView(c, c.Param("name"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err.Error()))
	}
	view.Leave(c.Request().Context())
	return c.JSON(http.StatusOK, view.Render(c.Request().Context()))
}

// voteDirection parses the {direction: "up"|"down"} body
func voteDirection(c echo.Context) (votes.Direction, error) {
	var body struct {
		Direction string `json:"direction"`
	}
	if err := c.Bind(&body); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	switch body.Direction {
	case "up":
		return votes.DirectionUp, nil
	case "down":
		return votes.DirectionDown, nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, "direction must be up or down")
	}
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
		return value
	}
	return fallback
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

// statusFor maps a normalized API error onto the response we forward; a
// transport error (never reached the server) reads as bad gateway here.
func statusFor(err error) int {
	if apiErr, ok := err.(*api.Error); ok && apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
