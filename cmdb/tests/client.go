package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/seed"
	"cmdb_platform/cmdb/services"
	"cmdb_platform/cmdb/tree"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Put(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "PUT", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) createGroup(name string) (int64, error) {
	body := map[string]string{"name": name}

	var res map[string]int64
	err := c.Post("/group/create").Json(body).Do(&res)
	return res["group_id"], err
}

func (c *client) deleteGroup(groupId int64) error {
	return c.Delete(fmt.Sprintf("/group/%d", groupId)).Do(nil)
}

func (c *client) addUserToGroup(groupId int64, userId string) error {
	return c.Post(fmt.Sprintf("/group/%d/users/%v", groupId, userId)).Do(nil)
}

func (c *client) removeUserFromGroup(groupId int64, userId string) error {
	return c.Delete(fmt.Sprintf("/group/%d/users/%v", groupId, userId)).Do(nil)
}

func (c *client) listGroups() ([]services.GroupInfo, error) {
	var res []services.GroupInfo
	err := c.Get("/group/list").Do(&res)
	return res, err
}

func (c *client) listGroupUsers(groupId int64) ([]services.GroupUserInfo, error) {
	var res []services.GroupUserInfo
	err := c.Get(fmt.Sprintf("/group/%d/users", groupId)).Do(&res)
	return res, err
}

func (c *client) getPermissions() (auth.PermissionSettings, error) {
	var res auth.PermissionSettings
	err := c.Get("/cmdb/settings/permissions").Do(&res)
	return res, err
}

func (c *client) setPermissions(settings auth.PermissionSettings) error {
	return c.Put("/cmdb/settings/permissions").Json(settings).Do(nil)
}

func (c *client) tree(parent string) ([]tree.Node, error) {
	var res []tree.Node
	err := c.Get(fmt.Sprintf("/cmdb/tree?parent=%v", parent)).Do(&res)
	return res, err
}

func (c *client) cmdbInfo() (services.InfoResponse, error) {
	var res services.InfoResponse
	err := c.Get("/cmdb/info").Do(&res)
	return res, err
}

func (c *client) seedAdd() (seed.InsertStats, error) {
	var res seed.InsertStats
	err := c.Post("/cmdb/seed_data/add").Do(&res)
	return res, err
}

func (c *client) seedRemoveUnused() (seed.RemoveStats, error) {
	var res seed.RemoveStats
	err := c.Post("/cmdb/seed_data/remove_unused").Do(&res)
	return res, err
}

// crudResult covers the three response shapes the entity endpoints return:
// success with id and notice, validation errors, and the occupied-class
// conflict with a single error string.
type crudResult struct {
	Success bool     `json:"success"`
	Id      int64    `json:"id"`
	Notice  string   `json:"notice"`
	Errors  []string `json:"errors"`
	Error   string   `json:"error"`
}

func (c *client) createEntity(endpoint string, body interface{}) (crudResult, error) {
	var res crudResult
	err := c.Post(endpoint).Json(body).Do(&res)
	return res, err
}

func (c *client) updateEntity(endpoint string, body interface{}) (crudResult, error) {
	var res crudResult
	err := c.Put(endpoint).Json(body).Do(&res)
	return res, err
}

func (c *client) deleteEntity(endpoint string) (crudResult, error) {
	var res crudResult
	err := c.Delete(endpoint).Do(&res)
	return res, err
}

func (c *client) createHierarchyLevel(key string, level int, nameAbbr, nameFull string) (crudResult, error) {
	return c.createEntity("/hierarchy_levels/create", map[string]interface{}{
		"key": key, "level": level, "name_abbr": nameAbbr, "name_full": nameFull,
	})
}

func (c *client) createLocation(body map[string]interface{}) (crudResult, error) {
	return c.createEntity("/locations/create", body)
}

func (c *client) createCiClass(body map[string]interface{}) (crudResult, error) {
	return c.createEntity("/ci_classes/create", body)
}

func (c *client) createLifecycleStatus(key, nameAbbr string) (crudResult, error) {
	return c.createEntity("/lifecycle_statuses/create", map[string]interface{}{
		"key": key, "name_abbr": nameAbbr,
	})
}

func (c *client) createCi(body map[string]interface{}) (crudResult, error) {
	return c.createEntity("/cis/create", body)
}

func (c *client) createExternalSystem(body map[string]interface{}) (crudResult, error) {
	return c.createEntity("/external_systems/create", body)
}

func (c *client) listExternalRefs(ciId int64) ([]services.ExternalRefInfo, error) {
	var res []services.ExternalRefInfo
	err := c.Get(fmt.Sprintf("/cis/%d/external_refs", ciId)).Do(&res)
	return res, err
}

func (c *client) addExternalRef(ciId, extSysId int64, extKey string) (crudResult, error) {
	return c.createEntity(fmt.Sprintf("/cis/%d/external_refs", ciId), map[string]interface{}{
		"ext_sys_id": extSysId, "ext_key": extKey,
	})
}

func (c *client) removeExternalRef(ciId, extSysId int64, extKey string) (crudResult, error) {
	return c.deleteEntity(fmt.Sprintf("/cis/%d/external_refs/%d/%v", ciId, extSysId, extKey))
}

func (c *client) createIssue(subject string) (int64, error) {
	var res map[string]int64
	err := c.Post("/issues/create").Json(map[string]string{"subject": subject}).Do(&res)
	return res["issue_id"], err
}

func (c *client) linkCi(issueId, ciId int64) error {
	return c.Post(fmt.Sprintf("/issues/%d/cis", issueId)).Json(map[string]int64{"ci_id": ciId}).Do(nil)
}

func (c *client) unlinkCi(issueId, ciId int64) error {
	return c.Delete(fmt.Sprintf("/issues/%d/cis/%d", issueId, ciId)).Do(nil)
}

func (c *client) issueCis(issueId int64) ([]services.IssueCiInfo, error) {
	var res []services.IssueCiInfo
	err := c.Get(fmt.Sprintf("/issues/%d/cis", issueId)).Do(&res)
	return res, err
}

func (c *client) availableCis(issueId int64, parent string) ([]tree.Node, error) {
	endpoint := fmt.Sprintf("/issues/%d/cis/available", issueId)
	if parent != "" {
		endpoint += "?parent_id=" + parent
	}
	var res []tree.Node
	err := c.Get(endpoint).Do(&res)
	return res, err
}

func (c *client) issueJournal(issueId int64) ([]journalEntry, error) {
	var res []journalEntry
	err := c.Get(fmt.Sprintf("/issues/%d/journal", issueId)).Do(&res)
	return res, err
}

type journalEntry struct {
	Property string  `json:"property"`
	PropKey  string  `json:"prop_key"`
	Value    *string `json:"value"`
	OldValue *string `json:"old_value"`
}
