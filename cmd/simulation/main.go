package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/barterly/trade-engine/internal/auth"
	"github.com/barterly/trade-engine/internal/boost"
	"github.com/barterly/trade-engine/internal/catalog"
	"github.com/barterly/trade-engine/internal/config"
	"github.com/barterly/trade-engine/internal/database"
	"github.com/barterly/trade-engine/internal/pins"
	"github.com/barterly/trade-engine/internal/ranking"
	"github.com/barterly/trade-engine/internal/reputation"
	"github.com/barterly/trade-engine/internal/trade"
	"github.com/barterly/trade-engine/pkg/middleware"
)

const (
	numUsers      = 12
	itemsPerUser  = 3
	pinsPerUser   = 5
	numTrades     = 10
	serverAddress = "http://localhost:8080"
)

var categories = []string{"books", "electronics", "furniture", "clothing", "sports"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simUser is a provisioned participant with an active session
type simUser struct {
	userID string
	token  string
	items  []string
}

// simulationClient handles HTTP communication with the trade engine API
type simulationClient struct {
	baseURL  string
	opsToken string
	client   *http.Client
	stats    map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates the ops identity used for provisioning
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"pin":     {name: "Pin Item"},
			"unpin":   {name: "Unpin Item"},
			"trade":   {name: "Create Trade"},
			"confirm": {name: "Confirm Trade"},
			"rate":    {name: "Rate Trade"},
			"feed":    {name: "Category Feed"},
		},
	}

	token, err := sc.authenticate(auth.OpsUserID, auth.OpsAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate ops identity: %w", err)
	}
	sc.opsToken = token

	return sc, nil
}

// authenticate exchanges credentials for a JWT token
func (sc *simulationClient) authenticate(userID, secret string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"user_id":    userID,
		"api_secret": secret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["auth"].failures++
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON performs an authorized request and decodes the response envelope
func (sc *simulationClient) doJSON(method, path, token string, payload interface{}, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return resp.StatusCode, nil
}

// provisionUser creates a user through the internal routes and opens a session
func (sc *simulationClient) provisionUser(n int) (*simUser, error) {
	var result struct {
		Success bool `json:"success"`
		Data    struct {
			User struct {
				UserID string `json:"user_id"`
			} `json:"user"`
			APISecret string `json:"api_secret"`
		} `json:"data"`
	}

	payload := map[string]string{
		"email":    fmt.Sprintf("trader%d@example.com", n),
		"name":     fmt.Sprintf("Trader %d", n),
		"username": fmt.Sprintf("trader%d", n),
	}
	status, err := sc.doJSON("POST", "/api/v1/internal/users", sc.opsToken, payload, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("provision user failed with status %d", status)
	}

	token, err := sc.authenticate(result.Data.User.UserID, result.Data.APISecret)
	if err != nil {
		return nil, err
	}

	return &simUser{
		userID: result.Data.User.UserID,
		token:  token,
	}, nil
}

// provisionItem creates an item owned by the given user
func (sc *simulationClient) provisionItem(ownerID string, n int) (string, error) {
	var result struct {
		Success bool `json:"success"`
		Data    struct {
			ItemID string `json:"item_id"`
		} `json:"data"`
	}

	payload := map[string]string{
		"owner_id": ownerID,
		"title":    fmt.Sprintf("Item %d of %s", n, ownerID),
		"category": categories[rand.Intn(len(categories))],
	}
	status, err := sc.doJSON("POST", "/api/v1/internal/items", sc.opsToken, payload, &result)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("provision item failed with status %d", status)
	}
	return result.Data.ItemID, nil
}

// pinItem pins an item for the user, tolerating conflict replies
func (sc *simulationClient) pinItem(user *simUser, itemID string) error {
	start := time.Now()
	defer func() {
		sc.stats["pin"].addDuration(time.Since(start))
	}()

	status, err := sc.doJSON("POST", fmt.Sprintf("/api/v1/items/%s/pin", itemID), user.token, nil, nil)
	if err != nil {
		sc.stats["pin"].failures++
		return err
	}
	if status != http.StatusCreated && status != http.StatusConflict && status != http.StatusBadRequest {
		sc.stats["pin"].failures++
		return fmt.Errorf("pin failed with status %d", status)
	}
	return nil
}

// unpinItem removes the user's pin from an item
func (sc *simulationClient) unpinItem(user *simUser, itemID string) error {
	start := time.Now()
	defer func() {
		sc.stats["unpin"].addDuration(time.Since(start))
	}()

	status, err := sc.doJSON("DELETE", fmt.Sprintf("/api/v1/items/%s/pin", itemID), user.token, nil, nil)
	if err != nil {
		sc.stats["unpin"].failures++
		return err
	}
	if status != http.StatusOK && status != http.StatusConflict {
		sc.stats["unpin"].failures++
		return fmt.Errorf("unpin failed with status %d", status)
	}
	return nil
}

// createTrade opens a trade on an item and returns the trade ID
func (sc *simulationClient) createTrade(user *simUser, itemID string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["trade"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			TradeID string `json:"trade_id"`
		} `json:"data"`
	}
	status, err := sc.doJSON("POST", "/api/v1/trades", user.token, map[string]string{"item_id": itemID}, &result)
	if err != nil {
		sc.stats["trade"].failures++
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["trade"].failures++
		return "", fmt.Errorf("create trade failed with status %d", status)
	}
	if result.Data.TradeID == "" {
		return "", fmt.Errorf("no trade ID in response")
	}
	return result.Data.TradeID, nil
}

// confirmTrade confirms a trade as the given user
func (sc *simulationClient) confirmTrade(user *simUser, tradeID string) error {
	start := time.Now()
	defer func() {
		sc.stats["confirm"].addDuration(time.Since(start))
	}()

	status, err := sc.doJSON("POST", fmt.Sprintf("/api/v1/trades/%s/confirm", tradeID), user.token, nil, nil)
	if err != nil {
		sc.stats["confirm"].failures++
		return err
	}
	// Conflicts are expected when both sides race or retry
	if status != http.StatusCreated && status != http.StatusConflict {
		sc.stats["confirm"].failures++
		return fmt.Errorf("confirm failed with status %d", status)
	}
	return nil
}

// rateTrade rates the other party on a completed trade
func (sc *simulationClient) rateTrade(user *simUser, tradeID string, rating int) error {
	start := time.Now()
	defer func() {
		sc.stats["rate"].addDuration(time.Since(start))
	}()

	status, err := sc.doJSON("POST", fmt.Sprintf("/api/v1/trades/%s/rate", tradeID), user.token,
		map[string]int{"rating": rating}, nil)
	if err != nil {
		sc.stats["rate"].failures++
		return err
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		sc.stats["rate"].failures++
		return fmt.Errorf("rate failed with status %d", status)
	}
	return nil
}

// categoryFeed fetches the ranked feed for a category
func (sc *simulationClient) categoryFeed(category string) (int, error) {
	start := time.Now()
	defer func() {
		sc.stats["feed"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			ItemID     string  `json:"item_id"`
			BoostScore float64 `json:"boost_score"`
			PinCount   int     `json:"pin_count"`
		} `json:"data"`
	}
	status, err := sc.doJSON("GET", "/api/v1/items?category="+category, "", nil, &result)
	if err != nil {
		sc.stats["feed"].failures++
		return 0, err
	}
	if status != http.StatusOK {
		sc.stats["feed"].failures++
		return 0, fmt.Errorf("feed failed with status %d", status)
	}
	return len(result.Data), nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the barter simulation
// It starts a local API server, provisions a population of users and items,
// then drives pins, trades with racing confirmations, and ratings through
// the public API.
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	stats := struct {
		Users           int
		Items           int
		Pins            int
		Unpins          int
		TradesOpened    int
		TradesCompleted int
		Ratings         int
		Failed          int
		StartTime       time.Time
		Categories      map[string]int
	}{
		StartTime:  time.Now(),
		Categories: make(map[string]int),
	}

	// Provision the population
	users := make([]*simUser, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := simClient.provisionUser(i)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to provision user")
		}
		for j := 0; j < itemsPerUser; j++ {
			itemID, err := simClient.provisionItem(user.userID, j)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to provision item")
			}
			user.items = append(user.items, itemID)
			stats.Items++
		}
		users = append(users, user)
		stats.Users++
		log.Info().Str("user_id", user.userID).Int("items", len(user.items)).Msg("Provisioned user")
	}

	// Everyone pins a handful of other users' items
	for i, user := range users {
		for p := 0; p < pinsPerUser; p++ {
			other := users[rand.Intn(len(users))]
			if other == user || len(other.items) == 0 {
				continue
			}
			itemID := other.items[rand.Intn(len(other.items))]
			if err := simClient.pinItem(user, itemID); err != nil {
				log.Error().Err(err).Str("item_id", itemID).Msg("Failed to pin item")
				stats.Failed++
				continue
			}
			stats.Pins++

			// Occasionally change our mind right away
			if rand.Intn(4) == 0 {
				if err := simClient.unpinItem(user, itemID); err == nil {
					stats.Unpins++
				}
			}
		}
		log.Info().Int("user_index", i).Msg("Pinning round complete")
	}

	// Open trades and confirm from both sides concurrently to exercise the
	// exactly-once completion path
	for t := 0; t < numTrades; t++ {
		trader := users[rand.Intn(len(users))]
		owner := users[rand.Intn(len(users))]
		if trader == owner || len(owner.items) == 0 {
			continue
		}
		itemID := owner.items[rand.Intn(len(owner.items))]

		tradeID, err := simClient.createTrade(trader, itemID)
		if err != nil {
			log.Error().Err(err).Str("item_id", itemID).Msg("Failed to open trade")
			stats.Failed++
			continue
		}
		stats.TradesOpened++
		log.Info().Str("trade_id", tradeID).Msg("Trade opened")

		var wg sync.WaitGroup
		for _, confirmer := range []*simUser{owner, trader} {
			wg.Add(1)
			go func(u *simUser) {
				defer wg.Done()
				if err := simClient.confirmTrade(u, tradeID); err != nil {
					log.Error().Err(err).Str("trade_id", tradeID).Msg("Failed to confirm trade")
				}
			}(confirmer)
		}
		wg.Wait()
		stats.TradesCompleted++

		// Both parties rate each other
		if err := simClient.rateTrade(owner, tradeID, rand.Intn(5)+1); err == nil {
			stats.Ratings++
		}
		if err := simClient.rateTrade(trader, tradeID, rand.Intn(5)+1); err == nil {
			stats.Ratings++
		}
	}

	// Read the ranked feeds
	for _, category := range categories {
		count, err := simClient.categoryFeed(category)
		if err != nil {
			log.Error().Err(err).Str("category", category).Msg("Failed to fetch feed")
			continue
		}
		stats.Categories[category] = count
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 BARTER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Engine Statistics
-------------------
Users:            %d
Items:            %d
Pins:             %d
Unpins:           %d
Trades Opened:    %d
Trades Completed: %d
Ratings:          %d
Failed Calls:     %d
Duration:         %v

📈 Category Feed Sizes
---------------------
`, stats.Users, stats.Items, stats.Pins, stats.Unpins,
		stats.TradesOpened, stats.TradesCompleted, stats.Ratings, stats.Failed,
		duration.Round(time.Millisecond))

	maxCount := 0
	for _, count := range stats.Categories {
		if count > maxCount {
			maxCount = count
		}
	}
	for category, count := range stats.Categories {
		barLength := 0
		if maxCount > 0 {
			barLength = int(float64(count) / float64(maxCount) * 20)
		}
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-12s: %s (%d)\n", category, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("trades_opened", stats.TradesOpened).
		Int("trades_completed", stats.TradesCompleted).
		Int("ratings", stats.Ratings).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// startServer initializes and starts the trade engine API server
// Sets up all required services, handlers and routes
func startServer() error {
	cfg := config.Default()
	cfg.Database.Path = "simulation.db"

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err := authService.EnsureOpsCredential(auth.OpsUserID, auth.OpsAPISecret); err != nil {
		return fmt.Errorf("failed to register ops credentials: %w", err)
	}

	catalogService := catalog.NewService(db)
	reputationService := reputation.NewService(db)
	tradeService := trade.NewService(db, reputationService)
	scorer := boost.NewScorer(pins.NewDatabase(db), cfg.Boost.CacheSize, cfg.Boost.CacheTTL)
	pinService := pins.NewService(db, scorer)
	rankingService := ranking.NewService(catalogService, scorer, cfg.Ranking.PortfolioCap)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	catalogHandlers := catalog.NewGinHandlers(catalogService)
	reputationHandlers := reputation.NewGinHandlers(reputationService)
	tradeHandlers := trade.NewGinHandlers(tradeService)
	pinHandlers := pins.NewGinHandlers(pinService)
	rankingHandlers := ranking.NewGinHandlers(rankingService)

	// Setup routes
	jwtSecret := []byte(cfg.Auth.JWTSecret)
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		v1.GET("/items", rankingHandlers.ListItemsHandler())
		v1.GET("/users/:user_id", reputationHandlers.GetUserHandler())
		v1.GET("/users/:user_id/portfolio", rankingHandlers.PortfolioHandler())

		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(jwtSecret))
		{
			trades.POST("", tradeHandlers.CreateTradeHandler())
			trades.GET("", tradeHandlers.ListTradesHandler())
			trades.GET("/:trade_id", tradeHandlers.GetTradeHandler())
			trades.POST("/:trade_id/confirm", tradeHandlers.ConfirmTradeHandler())
			trades.POST("/:trade_id/rate", reputationHandlers.RateTradeHandler())
		}

		items := v1.Group("/items")
		items.Use(middleware.JWTAuth(jwtSecret))
		{
			items.POST("/:item_id/pin", pinHandlers.PinItemHandler())
			items.DELETE("/:item_id/pin", pinHandlers.UnpinItemHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/users", authHandlers.CreateUserHandler())
			internal.POST("/items", catalogHandlers.CreateItemHandler())
		}
	}

	// Start the server
	return router.Run(":8080")
}
