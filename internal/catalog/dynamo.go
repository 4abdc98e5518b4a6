package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/resilience"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the catalog source.
type DynamoDBAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBSource loads the pricing catalog from DynamoDB tables.
type DynamoDBSource struct {
	client               DynamoDBAPI
	tableCSICodes        string
	tableBasePrices      string
	tableLocationFactors string
	tableEscalations     string
	logger               *observability.Logger
	retryCfg             resilience.RetryConfig
	cb                   *resilience.CircuitBreaker
	health               *healthTracker
}

// DynamoDBSourceConfig holds DynamoDB source configuration.
type DynamoDBSourceConfig struct {
	AWSConfig            aws.Config
	TableCSICodes        string
	TableBasePrices      string
	TableLocationFactors string
	TableEscalations     string
	Logger               *observability.Logger
	Metrics              *observability.Metrics
	Retry                *resilience.RetryConfig
	CircuitBreaker       *resilience.CircuitBreaker

	// Client overrides the SDK client built from AWSConfig.
	Client DynamoDBAPI
}

// csiCodeRecord is the DynamoDB row shape for the CSI codes table.
type csiCodeRecord struct {
	Code        string `dynamodbav:"code"`
	Level       int    `dynamodbav:"level"`
	Title       string `dynamodbav:"title"`
	Description string `dynamodbav:"description"`
	ParentCode  string `dynamodbav:"parent_code"`
}

// basePriceRecord is the DynamoDB row shape for the base prices table.
type basePriceRecord struct {
	CSICode       string    `dynamodbav:"csi_code"`
	Location      string    `dynamodbav:"location"`
	LaborCost     float64   `dynamodbav:"labor_cost"`
	MaterialCost  float64   `dynamodbav:"material_cost"`
	EquipmentCost float64   `dynamodbav:"equipment_cost"`
	TotalCost     float64   `dynamodbav:"total_cost"`
	Unit          string    `dynamodbav:"unit"`
	EffectiveDate time.Time `dynamodbav:"effective_date"`
	LastUpdated   time.Time `dynamodbav:"last_updated"`
}

// locationFactorRecord is the DynamoDB row shape for the location factors table.
type locationFactorRecord struct {
	Location        string  `dynamodbav:"location"`
	LaborFactor     float64 `dynamodbav:"labor_factor"`
	MaterialFactor  float64 `dynamodbav:"material_factor"`
	EquipmentFactor float64 `dynamodbav:"equipment_factor"`
	TotalFactor     float64 `dynamodbav:"total_factor"`
	CostIndex       float64 `dynamodbav:"cost_index"`
}

// escalationRecord is the DynamoDB row shape for the escalation indices table.
type escalationRecord struct {
	Quarter       string    `dynamodbav:"quarter"`
	LaborPct      float64   `dynamodbav:"labor_pct"`
	MaterialPct   float64   `dynamodbav:"material_pct"`
	EquipmentPct  float64   `dynamodbav:"equipment_pct"`
	OverallPct    float64   `dynamodbav:"overall_pct"`
	BaseIndex     float64   `dynamodbav:"base_index"`
	PublishedDate time.Time `dynamodbav:"published_date"`
}

// NewDynamoDBSource creates a new DynamoDB catalog source.
func NewDynamoDBSource(cfg DynamoDBSourceConfig) (*DynamoDBSource, error) {
	if cfg.TableCSICodes == "" || cfg.TableBasePrices == "" ||
		cfg.TableLocationFactors == "" || cfg.TableEscalations == "" {
		return nil, fmt.Errorf("all four catalog table names are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	// Create circuit breaker if not provided
	cb := cfg.CircuitBreaker
	if cb == nil {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "dynamodb-catalog",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			OnStateChange: func(from, to resilience.State) {
				if cfg.Metrics != nil {
					cfg.Metrics.SetCircuitBreakerState(context.Background(), "dynamodb-catalog", int64(to))
				}
			},
		})
	}
	if cfg.Metrics != nil {
		cfg.Metrics.SetCircuitBreakerState(context.Background(), "dynamodb-catalog", cb.StateInt())
	}

	client := cfg.Client
	if client == nil {
		client = dynamodb.NewFromConfig(cfg.AWSConfig)
	}

	return &DynamoDBSource{
		client:               client,
		tableCSICodes:        cfg.TableCSICodes,
		tableBasePrices:      cfg.TableBasePrices,
		tableLocationFactors: cfg.TableLocationFactors,
		tableEscalations:     cfg.TableEscalations,
		logger:               cfg.Logger,
		retryCfg:             retryCfg,
		cb:                   cb,
		health:               newHealthTracker("dynamodb"),
	}, nil
}

// Name returns the source identifier.
func (s *DynamoDBSource) Name() string {
	return "dynamodb"
}

// LoadCSICodes scans the CSI codes table.
func (s *DynamoDBSource) LoadCSICodes(ctx context.Context) ([]pricing.CSICode, error) {
	items, err := s.scanTable(ctx, s.tableCSICodes)
	if err != nil {
		return nil, err
	}

	var records []csiCodeRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CSI code rows: %w", err)
	}

	codes := make([]pricing.CSICode, 0, len(records))
	for _, rec := range records {
		codes = append(codes, pricing.CSICode{
			Code:        rec.Code,
			Level:       rec.Level,
			Title:       rec.Title,
			Description: rec.Description,
			ParentCode:  rec.ParentCode,
		})
	}

	s.logger.LogDebug(ctx, "loaded CSI codes from DynamoDB", "table", s.tableCSICodes, "count", len(codes))
	return codes, nil
}

// LoadBaselinePricing scans the base prices and location factors tables and
// groups the rows by location.
func (s *DynamoDBSource) LoadBaselinePricing(ctx context.Context) ([]pricing.LocationPricing, error) {
	priceItems, err := s.scanTable(ctx, s.tableBasePrices)
	if err != nil {
		return nil, err
	}
	factorItems, err := s.scanTable(ctx, s.tableLocationFactors)
	if err != nil {
		return nil, err
	}

	var priceRecords []basePriceRecord
	if err := attributevalue.UnmarshalListOfMaps(priceItems, &priceRecords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base price rows: %w", err)
	}
	var factorRecords []locationFactorRecord
	if err := attributevalue.UnmarshalListOfMaps(factorItems, &factorRecords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location factor rows: %w", err)
	}

	byLocation := make(map[string]*pricing.LocationPricing)
	group := func(location string) *pricing.LocationPricing {
		lp, ok := byLocation[location]
		if !ok {
			lp = &pricing.LocationPricing{Location: location}
			byLocation[location] = lp
		}
		return lp
	}

	for _, rec := range priceRecords {
		lp := group(rec.Location)
		lp.Prices = append(lp.Prices, pricing.BaseUnitPrice{
			CSICode:       rec.CSICode,
			Location:      rec.Location,
			LaborCost:     rec.LaborCost,
			MaterialCost:  rec.MaterialCost,
			EquipmentCost: rec.EquipmentCost,
			TotalCost:     rec.TotalCost,
			Unit:          rec.Unit,
			EffectiveDate: rec.EffectiveDate,
			LastUpdated:   rec.LastUpdated,
		})
	}
	for _, rec := range factorRecords {
		group(rec.Location).Factor = pricing.LocationFactor{
			Location:        rec.Location,
			LaborFactor:     rec.LaborFactor,
			MaterialFactor:  rec.MaterialFactor,
			EquipmentFactor: rec.EquipmentFactor,
			TotalFactor:     rec.TotalFactor,
			CostIndex:       rec.CostIndex,
		}
	}

	locations := make([]pricing.LocationPricing, 0, len(byLocation))
	for _, lp := range byLocation {
		locations = append(locations, *lp)
	}

	s.logger.LogDebug(ctx, "loaded baseline pricing from DynamoDB",
		"prices", len(priceRecords),
		"factors", len(factorRecords),
		"locations", len(locations),
	)
	return locations, nil
}

// LoadEscalationIndices scans the escalation indices table.
func (s *DynamoDBSource) LoadEscalationIndices(ctx context.Context) ([]pricing.EscalationIndex, error) {
	items, err := s.scanTable(ctx, s.tableEscalations)
	if err != nil {
		return nil, err
	}

	var records []escalationRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal escalation rows: %w", err)
	}

	indices := make([]pricing.EscalationIndex, 0, len(records))
	for _, rec := range records {
		indices = append(indices, pricing.EscalationIndex{
			Quarter:       rec.Quarter,
			LaborPct:      rec.LaborPct,
			MaterialPct:   rec.MaterialPct,
			EquipmentPct:  rec.EquipmentPct,
			OverallPct:    rec.OverallPct,
			BaseIndex:     rec.BaseIndex,
			PublishedDate: rec.PublishedDate,
		})
	}

	s.logger.LogDebug(ctx, "loaded escalation indices from DynamoDB", "table", s.tableEscalations, "count", len(indices))
	return indices, nil
}

// Health returns the current health status of the DynamoDB source.
func (s *DynamoDBSource) Health() SourceHealth {
	h := s.health.snapshot()
	if s.cb != nil {
		h.CircuitState = s.cb.State().String()
	}
	return h
}

// scanTable reads every page of a table through the circuit breaker with
// retries. A failure mid-pagination restarts the whole scan so a loaded
// table is never partial.
func (s *DynamoDBSource) scanTable(ctx context.Context, table string) ([]map[string]ddbtypes.AttributeValue, error) {
	return resilience.ExecuteWithResult(s.cb, ctx, func(ctx context.Context) ([]map[string]ddbtypes.AttributeValue, error) {
		return resilience.RetryWithResult(ctx, s.retryCfg, func(ctx context.Context) ([]map[string]ddbtypes.AttributeValue, error) {
			start := time.Now()
			items, err := s.scanAllPages(ctx, table)
			s.health.record(err, time.Since(start))
			return items, err
		})
	})
}

func (s *DynamoDBSource) scanAllPages(ctx context.Context, table string) ([]map[string]ddbtypes.AttributeValue, error) {
	var items []map[string]ddbtypes.AttributeValue
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", table, err)
		}

		items = append(items, out.Items...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return items, nil
}
