// internal/router/router_test.go
package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/pipeline"
)

type staticStatus struct {
	status pipeline.Status
}

func (s *staticStatus) Status() pipeline.Status { return s.status }

type RouterTestSuite struct {
	suite.Suite
	status  *staticStatus
	metrics *metrics.Registry
	router  *gin.Engine
}

func (suite *RouterTestSuite) SetupTest() {
	suite.status = &staticStatus{status: pipeline.Status{Running: true, Step: "offers"}}
	suite.metrics = metrics.NewRegistry()
	suite.router = Initialize(suite.status, suite.metrics)
}

func (suite *RouterTestSuite) get(path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RouterTestSuite) TestHealth() {
	w := suite.get("/health")
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "healthy", response["status"])
	assert.Equal(suite.T(), true, response["running"])
}

func (suite *RouterTestSuite) TestHealthDegradedAfterFailure() {
	suite.status.status = pipeline.Status{LastError: "index write failed: boom"}

	w := suite.get("/health")
	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "degraded", response["status"])
}

func (suite *RouterTestSuite) TestStatus() {
	w := suite.get("/status")
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Success bool            `json:"success"`
		Data    pipeline.Status `json:"data"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response.Success)
	assert.Equal(suite.T(), "offers", response.Data.Step)
}

func (suite *RouterTestSuite) TestMetrics() {
	suite.metrics.OffersParsed.Add(3)

	w := suite.get("/metrics")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "etl_offers_parsed_total 3")
}

func (suite *RouterTestSuite) TestUnknownRoute() {
	w := suite.get("/v1/offers")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(suite.T(), response["success"].(bool))
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
