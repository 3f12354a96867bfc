package server

import "codestreak/internal/domain"

// Request payloads

type UserLoginRequest struct {
	Username string `json:"username"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type AddProblemRequest struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Link   string `json:"link,omitempty"`
	Day    int    `json:"day" minimum:"1"`
}

type SolutionLinkRequest struct {
	SolutionLink string `json:"solution_link"`
}

type TriggerRequest struct {
	Day int `json:"day" minimum:"1"`
}

type RegisterParticipantRequest struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

type ProblemResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Points         int    `json:"points"`
	Link           string `json:"link,omitempty"`
	Day            int    `json:"day"`
	Published      bool   `json:"published"`
	SolutionLink   string `json:"solution_link,omitempty"`
	SolutionPublic bool   `json:"solution_public"`
}

type CurrentDayResponse struct {
	CurrentDay int `json:"current_day"`
}

type ProcessingDayResponse struct {
	Day     int    `json:"day"`
	Stopped bool   `json:"stopped"`
	State   string `json:"state"`
}

type BacklogResponse struct {
	Day       int      `json:"day"`
	Usernames []string `json:"usernames"`
	Remaining int      `json:"remaining"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func problemResponse(p domain.Problem, includeSolution bool) ProblemResponse {
	res := ProblemResponse{
		ID:             p.ID,
		Name:           p.Name,
		Points:         p.Points,
		Link:           p.Link,
		Day:            p.Day,
		Published:      p.Published,
		SolutionPublic: p.SolutionPublic,
	}
	if includeSolution || p.SolutionPublic {
		res.SolutionLink = p.SolutionLink
	}
	return res
}

func mapProblems(items []domain.Problem, includeSolution bool) []ProblemResponse {
	res := make([]ProblemResponse, 0, len(items))
	for _, p := range items {
		res = append(res, problemResponse(p, includeSolution))
	}
	return res
}
