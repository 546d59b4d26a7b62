// Package platform is an in-memory Norman platform for tests. It serves the
// HTTP API on an httptest server, issues signed JWTs, assigns IDs to created
// records and derives status flags from what has been uploaded.
package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/norman-ai/norman-sdk-go/pkg/api"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

var secret = []byte("platform-test-secret")

// Platform is a running fake. Exported hooks may be set before the first
// request.
type Platform struct {
	URL string

	// TokenTTL is the lifetime of issued tokens. Default one hour.
	TokenTTL time.Duration
	// EmptyCreate makes record creation return an empty list.
	EmptyCreate bool
	// Output produces the bytes of an invocation output.
	Output func(inv model.Invocation, out model.InvocationOutput) []byte

	mu          sync.Mutex
	seq         int
	keys        map[string]string // api key → account id
	passwords   map[string]string // account id → password
	logins      int
	models      map[string]model.Model
	invocations map[string]model.Invocation
	done        map[string]bool
	failed      map[string]bool
	hidden      map[string]bool
	queries     int
	links       []model.LinkRequest
}

// New starts a fake platform that lives until the test ends.
func New(t testing.TB) *Platform {
	p := &Platform{
		TokenTTL:    time.Hour,
		keys:        map[string]string{},
		passwords:   map[string]string{},
		models:      map[string]model.Model{},
		invocations: map[string]model.Invocation{},
		done:        map[string]bool{},
		failed:      map[string]bool{},
		hidden:      map[string]bool{},
	}
	srv := httptest.NewServer(p.routes())
	t.Cleanup(srv.Close)
	p.URL = srv.URL
	return p
}

func (p *Platform) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(api.RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Post(api.RouteLoginKey, p.loginKey)
	r.Post(api.RouteSignupDefault, p.signupDefault)
	r.Post(api.RouteSignupPassword, p.signupPassword)
	r.Post(api.RouteLoginPassword, p.loginPassword)

	r.Group(func(r chi.Router) {
		r.Use(p.authenticate)
		r.Post(api.RouteRegisterAPIKey, p.registerKey)
		r.Post(api.RouteCreateModels, p.createModels)
		r.Post(api.RouteCreateInvocation, p.createInvocations)
		r.Post(api.RouteStatusFlags, p.statusFlags)
		r.Post(api.RouteAssetLinks, p.submitLinks)
		r.Post(api.RouteInputLinks, p.submitLinks)
		r.Get(api.RouteOutput+"/{account}/{model}/{invocation}/{output}", p.output)
	})
	return r
}

// AddKey registers an API key for accountID.
func (p *Platform) AddKey(key, accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = accountID
}

// Finish marks an uploaded entity as finished.
func (p *Platform) Finish(entityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[entityID] = true
}

// Fail makes an entity report the Error flag.
func (p *Platform) Fail(entityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[entityID] = true
}

// Hide makes an entity report no flags at all.
func (p *Platform) Hide(entityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden[entityID] = true
}

// Logins counts successful key, password and default logins.
func (p *Platform) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// FlagQueries counts status flag queries.
func (p *Platform) FlagQueries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

// Links returns the link requests received so far.
func (p *Platform) Links() []model.LinkRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.LinkRequest(nil), p.links...)
}

// Model returns a created model by name.
func (p *Platform) Model(name string) (model.Model, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[name]
	return m, ok
}

func (p *Platform) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", prefix, p.seq)
}

// issue signs a token for accountID. Caller holds mu.
func (p *Platform) issue(accountID string) model.LoginResponse {
	p.logins++
	claims := jwt.MapClaims{
		"sub": accountID,
		"exp": time.Now().Add(p.TokenTTL).Unix(),
		"jti": p.nextID("tok"),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return model.LoginResponse{
		Account:     model.Account{ID: accountID, Name: accountID},
		AccessToken: tok,
	}
}

func (p *Platform) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) loginKey(w http.ResponseWriter, r *http.Request) {
	var in struct {
		APIKey string `json:"api_key"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.keys[in.APIKey]
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown api key")
		return
	}
	writeJSON(w, http.StatusOK, p.issue(acc))
}

func (p *Platform) signupDefault(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	writeJSON(w, http.StatusOK, p.issue(p.nextID("anon")))
}

func (p *Platform) signupPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID("acc")
	p.passwords[id] = in.Password
	writeJSON(w, http.StatusOK, model.Account{ID: id, Name: in.Name})
}

func (p *Platform) loginPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccountID string `json:"account_id"`
		Password  string `json:"password"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pw, ok := p.passwords[in.AccountID]; !ok || pw != in.Password {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	writeJSON(w, http.StatusOK, p.issue(in.AccountID))
}

func (p *Platform) registerKey(w http.ResponseWriter, r *http.Request) {
	var in model.APIKeyRequest
	if !readJSON(w, r, &in) {
		return
	}
	if in.SecondToken == "" {
		writeError(w, http.StatusBadRequest, "second token required")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := "key-" + in.AccountID
	p.keys[key] = in.AccountID
	writeJSON(w, http.StatusOK, key)
}

func (p *Platform) createModels(w http.ResponseWriter, r *http.Request) {
	var in []model.Model
	if !readJSON(w, r, &in) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EmptyCreate {
		writeJSON(w, http.StatusOK, []model.Model{})
		return
	}
	for i := range in {
		m := &in[i]
		m.ID = p.nextID("model")
		m.VersionID = p.nextID("version")
		if m.AccountID == "" {
			m.AccountID = "acc"
		}
		for j := range m.Assets {
			a := &m.Assets[j]
			a.ID = p.nextID("asset")
			a.ModelID = m.ID
			a.AccountID = m.AccountID
		}
		for _, sigs := range [][]model.ModelSignature{m.Inputs, m.Outputs} {
			for j := range sigs {
				sigs[j].ID = p.nextID("sig")
				sigs[j].ModelID = m.ID
			}
		}
		p.done[m.VersionID] = true
		p.models[m.Name] = *m
	}
	writeJSON(w, http.StatusOK, in)
}

func (p *Platform) createInvocations(w http.ResponseWriter, r *http.Request) {
	var counts map[string]int
	if !readJSON(w, r, &counts) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EmptyCreate {
		writeJSON(w, http.StatusOK, []model.Invocation{})
		return
	}
	var out []model.Invocation
	for name, n := range counts {
		m, ok := p.models[name]
		if !ok {
			writeError(w, http.StatusNotFound, "model "+name+" not found")
			return
		}
		for range n {
			inv := model.Invocation{ID: p.nextID("inv"), AccountID: m.AccountID, ModelID: m.ID}
			for _, sig := range m.Inputs {
				inv.Inputs = append(inv.Inputs, model.InvocationInput{
					ID: p.nextID("input"), AccountID: m.AccountID, ModelID: m.ID,
					InvocationID: inv.ID, SignatureID: sig.ID, DisplayTitle: sig.DisplayTitle,
				})
			}
			for _, sig := range m.Outputs {
				inv.Outputs = append(inv.Outputs, model.InvocationOutput{
					ID: p.nextID("output"), AccountID: m.AccountID, ModelID: m.ID,
					InvocationID: inv.ID, SignatureID: sig.ID, DisplayTitle: sig.DisplayTitle,
				})
			}
			p.invocations[inv.ID] = inv
			out = append(out, inv)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (p *Platform) submitLinks(w http.ResponseWriter, r *http.Request) {
	var in model.LinkRequest
	if !readJSON(w, r, &in) {
		return
	}
	if strings.HasSuffix(r.URL.Path, "/assets/links") {
		in.Kind = model.TargetAsset
	} else {
		in.Kind = model.TargetInput
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.links = append(p.links, in)
	p.done[in.EntityID()] = true
	w.WriteHeader(http.StatusNoContent)
}

func (p *Platform) statusFlags(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Values []string `json:"values"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	out := map[string][]model.StatusFlag{}
	for _, id := range in.Values {
		if p.hidden[id] {
			continue
		}
		out[id] = []model.StatusFlag{{EntityID: id, FlagName: "status", FlagValue: p.flag(id)}}
	}
	writeJSON(w, http.StatusOK, out)
}

// flag derives the status of one entity. Caller holds mu.
func (p *Platform) flag(id string) model.FlagValue {
	if p.failed[id] {
		return model.FlagError
	}
	if p.done[id] {
		return model.FlagFinished
	}
	if inv, ok := p.invocations[id]; ok {
		return p.invocationFlag(inv)
	}
	for _, inv := range p.invocations {
		for _, o := range inv.Outputs {
			if o.ID == id {
				return p.invocationFlag(inv)
			}
		}
	}
	return model.FlagEnqueued
}

func (p *Platform) invocationFlag(inv model.Invocation) model.FlagValue {
	for _, in := range inv.Inputs {
		if p.failed[in.ID] {
			return model.FlagError
		}
		if !p.done[in.ID] {
			return model.FlagInProgress
		}
	}
	return model.FlagFinished
}

func (p *Platform) output(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	inv, ok := p.invocations[chi.URLParam(r, "invocation")]
	p.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "invocation not found")
		return
	}
	id := chi.URLParam(r, "output")
	for _, o := range inv.Outputs {
		if o.ID != id {
			continue
		}
		data := []byte("output:" + o.DisplayTitle)
		if p.Output != nil {
			data = p.Output(inv, o)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, "output not found")
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
