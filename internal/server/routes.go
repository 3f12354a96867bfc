package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"codestreak/internal/domain"
	"codestreak/internal/engine"
	"codestreak/internal/jobstate"
)

func registerAuth(api huma.API, e engine.Engine, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login-user",
		Method:      http.MethodPost,
		Path:        "/login/user",
		Summary:     "Participant login",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body UserLoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if input.Body.Username == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username is required", nil)
		}
		name, err := e.Repo.GetUser(ctx, input.Body.Username)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := auth.issueToken(input.Body.Username, nil, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, Username: input.Body.Username, Name: name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login-admin",
		Method:      http.MethodPost,
		Path:        "/login/admin",
		Summary:     "Admin login",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body AdminLoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if auth.AdminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(input.Body.Password), []byte(auth.AdminPassword)) != 1 {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid password", nil)
		}
		token, err := auth.issueToken("admin", []string{"admin"}, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, Username: "admin"}}, nil
	})
}

func registerProblems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-problems",
		Method:      http.MethodGet,
		Path:        "/problems",
		Summary:     "List published problems",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProblemResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListPublishedProblems(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProblemResponse `json:"body"`
		}{Body: mapProblems(items, false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-day",
		Method:      http.MethodGet,
		Path:        "/days/current",
		Summary:     "Highest published day",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CurrentDayResponse `json:"body"`
	}, error) {
		day, err := e.Repo.CurrentDay(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CurrentDayResponse `json:"body"`
		}{Body: CurrentDayResponse{CurrentDay: day}}, nil
	})
}

func registerLeaderboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Leaderboard ordered by streak then points",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.LeaderboardEntry `json:"body"`
	}, error) {
		items, err := e.Repo.Leaderboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.LeaderboardEntry `json:"body"`
		}{Body: items}, nil
	})
}

func registerAdminProblems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-problem",
		Method:        http.MethodPost,
		Path:          "/admin/problems",
		Summary:       "Add a problem (unpublished)",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body AddProblemRequest `json:"body"`
	}) (*struct {
		Body ProblemResponse `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.Points <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "points must be positive", nil)
		}
		p := domain.Problem{
			Name:      input.Body.Name,
			Points:    input.Body.Points,
			Link:      input.Body.Link,
			Day:       input.Body.Day,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		id, err := e.Repo.InsertProblem(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		created, err := e.Repo.GetProblem(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProblemResponse `json:"body"`
		}{Body: problemResponse(created, true)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-all-problems",
		Method:      http.MethodGet,
		Path:        "/admin/problems",
		Summary:     "List all problems",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProblemResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAllProblems(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProblemResponse `json:"body"`
		}{Body: mapProblems(items, true)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-solution-link",
		Method:      http.MethodPost,
		Path:        "/admin/problems/{id}/solution",
		Summary:     "Set a problem's solution link",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64               `path:"id"`
		Body SolutionLinkRequest `json:"body"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		if input.Body.SolutionLink == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "solution_link is required", nil)
		}
		if err := e.Repo.SetSolutionLink(ctx, input.ID, input.Body.SolutionLink); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "solution link updated"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-day",
		Method:      http.MethodPost,
		Path:        "/admin/days/{day}/publish",
		Summary:     "Publish a day's problems",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Day int `path:"day" minimum:"1"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		n, err := e.Repo.PublishDay(ctx, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no problems for that day", nil)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "day published"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-solutions",
		Method:      http.MethodPost,
		Path:        "/admin/days/{day}/publish-solutions",
		Summary:     "Publish a day's solutions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Day int `path:"day" minimum:"1"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		n, err := e.Repo.PublishSolutions(ctx, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no problems for that day", nil)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "solutions published"}}, nil
	})
}

func registerAdminParticipants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-participant",
		Method:        http.MethodPost,
		Path:          "/admin/participants",
		Summary:       "Register a participant",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterParticipantRequest `json:"body"`
	}) (*struct {
		Body domain.LeaderboardEntry `json:"body"`
	}, error) {
		entry, err := e.RegisterParticipant(ctx, input.Body.Username, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.LeaderboardEntry `json:"body"`
		}{Body: entry}, nil
	})
}

func registerAdminAutomation(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-processing-day",
		Method:      http.MethodGet,
		Path:        "/admin/processing-day",
		Summary:     "Current processing-day state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProcessingDayResponse `json:"body"`
	}, error) {
		state, err := e.State.Current(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessingDayResponse `json:"body"`
		}{Body: ProcessingDayResponse{Day: state.Day, Stopped: state.Stopped(), State: state.String()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "trigger-day",
		Method:      http.MethodPost,
		Path:        "/admin/trigger",
		Summary:     "Start processing a day",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body TriggerRequest `json:"body"`
	}) (*struct {
		Body ProcessingDayResponse `json:"body"`
	}, error) {
		if err := e.StartDay(ctx, input.Body.Day); err != nil {
			return nil, handleError(err)
		}
		state := jobstate.State{Day: input.Body.Day}
		return &struct {
			Body ProcessingDayResponse `json:"body"`
		}{Body: ProcessingDayResponse{Day: state.Day, State: state.String()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-job",
		Method:      http.MethodPost,
		Path:        "/admin/complete-job",
		Summary:     "Stop the processing job",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProcessingDayResponse `json:"body"`
	}, error) {
		if err := e.State.Complete(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessingDayResponse `json:"body"`
		}{Body: ProcessingDayResponse{Day: 0, Stopped: true, State: "stopped"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "backlog",
		Method:      http.MethodGet,
		Path:        "/admin/backlog/{day}",
		Summary:     "Participants not yet scored for a day",
	}, func(ctx context.Context, input *struct {
		Day int `path:"day" minimum:"1"`
	}) (*struct {
		Body BacklogResponse `json:"body"`
	}, error) {
		users, err := e.Repo.ParticipantsBehind(ctx, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BacklogResponse `json:"body"`
		}{Body: BacklogResponse{Day: input.Day, Usernames: users, Remaining: len(users)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/admin/runs",
		Summary:     "Recent automation runs",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20"`
	}) (*struct {
		Body []domain.AutomationRun `json:"body"`
	}, error) {
		runs, err := e.Repo.LatestRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AutomationRun `json:"body"`
		}{Body: runs}, nil
	})
}
