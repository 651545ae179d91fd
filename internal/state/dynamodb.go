package state

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// DynamoDBStore implements Store using AWS DynamoDB.
// Single-table design with PK/SK pattern:
//   - Config entries:      PK=CONFIG#<key>, SK="CONFIG"
//   - Payment attempts:    PK=ATTEMPT#<id>, SK="ATTEMPT"
//   - Payment intents:     PK=PAYMENT#<id>, SK="INTENT"
//   - Merchant accounts:   PK=MERCHANT#<id>, SK="MERCHANT"
//   - Business profiles:   PK=PROFILE#<id>, SK="PROFILE"
//   - Connector accounts:  PK=MERCHANT#<merchant_id>, SK=MCA#<mca_id>
//   - Process trackers:    PK=PT#<id>, SK="PT"
//
// GSI1: GSI1PK ("PT#DUE") + GSI1SK (schedule time, epoch ms) is the due index.
// GSI2: GSI2PK ("PT#STARTED") + GSI2SK (last update, epoch ms) is the stale scan.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB store.
func NewDynamoDBStore(client *dynamodb.Client, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

const (
	skConfig   = "CONFIG"
	skAttempt  = "ATTEMPT"
	skIntent   = "INTENT"
	skMerchant = "MERCHANT"
	skProfile  = "PROFILE"
	skProcess  = "PT"

	dueIndexPK   = "PT#DUE"
	staleIndexPK = "PT#STARTED"
)

// configRecord stores one opaque config value.
type configRecord struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Key   string `dynamodbav:"config_key"`
	Value string `dynamodbav:"config_value"`
}

// processRecord stores a process tracker with its due/stale index attributes.
type processRecord struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	ID             string `dynamodbav:"id"`
	Name           string `dynamodbav:"name"`
	TrackingData   string `dynamodbav:"tracking_data,omitempty"`
	Status         string `dynamodbav:"process_status"`
	BusinessStatus string `dynamodbav:"business_status,omitempty"`
	RetryCount     int    `dynamodbav:"retry_count"`
	ScheduleTimeMs int64  `dynamodbav:"schedule_time_ms"`
	CreatedAt      string `dynamodbav:"created_at"`
	UpdatedAt      string `dynamodbav:"updated_at"`
	GSI1PK         string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK         *int64 `dynamodbav:"GSI1SK,omitempty"`
	GSI2PK         string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK         *int64 `dynamodbav:"GSI2SK,omitempty"`
	TTL            *int64 `dynamodbav:"ttl,omitempty"`
}

func processToRecord(p *core.ProcessTracker) *processRecord {
	r := &processRecord{
		PK:             "PT#" + p.ID,
		SK:             skProcess,
		ID:             p.ID,
		Name:           p.Name,
		TrackingData:   string(p.TrackingData),
		Status:         string(p.Status),
		BusinessStatus: p.BusinessStatus,
		RetryCount:     p.RetryCount,
		ScheduleTimeMs: p.ScheduleTime.UnixMilli(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	// New and retry processes live on the due index until promoted.
	if p.Status == core.ProcessNew || p.Status == core.ProcessRetry {
		ms := p.ScheduleTime.UnixMilli()
		r.GSI1PK = dueIndexPK
		r.GSI1SK = &ms
	}
	return r
}

func recordToProcess(r *processRecord) *core.ProcessTracker {
	return &core.ProcessTracker{
		ID:             r.ID,
		Name:           r.Name,
		TrackingData:   []byte(r.TrackingData),
		Status:         core.ProcessStatus(r.Status),
		BusinessStatus: r.BusinessStatus,
		RetryCount:     r.RetryCount,
		ScheduleTime:   time.UnixMilli(r.ScheduleTimeMs).UTC(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// EnsureTable creates the table with GSIs if it doesn't exist.
func (s *DynamoDBStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: types.ScalarAttributeTypeN},
			{AttributeName: aws.String("GSI2PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI2SK"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
			{
				IndexName: aws.String("GSI2"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI2PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI2SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
		},
		BillingMode: types.BillingModeProvisioned,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("failed waiting for table: %w", err)
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String("ttl"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enable TTL: %w", err)
	}

	return nil
}

// --- ConfigStore ---

// FindConfig retrieves a config value by key. Returns ErrNotFound if absent.
func (s *DynamoDBStore) FindConfig(ctx context.Context, key string) (string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey("CONFIG#"+key, skConfig),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	if result.Item == nil {
		return "", ErrNotFound
	}

	var record configRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return "", fmt.Errorf("failed to unmarshal config %s: %w", key, err)
	}
	return record.Value, nil
}

// InsertConfig creates a config entry. Insert and update share a PutItem:
// the key space is owned by the caller and overwrites are last-writer-wins.
func (s *DynamoDBStore) InsertConfig(ctx context.Context, key, value string) error {
	return s.putConfig(ctx, key, value)
}

// UpdateConfig overwrites a config entry.
func (s *DynamoDBStore) UpdateConfig(ctx context.Context, key, value string) error {
	return s.putConfig(ctx, key, value)
}

func (s *DynamoDBStore) putConfig(ctx context.Context, key, value string) error {
	item, err := attributevalue.MarshalMap(&configRecord{
		PK:    "CONFIG#" + key,
		SK:    skConfig,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config %s: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put config %s: %w", key, err)
	}
	return nil
}

// --- PaymentStore ---

func (s *DynamoDBStore) FindPaymentAttempt(ctx context.Context, attemptID string) (*core.PaymentAttempt, error) {
	var attempt core.PaymentAttempt
	if err := s.getDoc(ctx, "ATTEMPT#"+attemptID, skAttempt, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *DynamoDBStore) UpdatePaymentAttempt(ctx context.Context, attempt *core.PaymentAttempt) error {
	attempt.ModifiedAt = core.NowFormatted()
	return s.putDoc(ctx, "ATTEMPT#"+attempt.AttemptID, skAttempt, attempt)
}

func (s *DynamoDBStore) FindPaymentIntent(ctx context.Context, paymentID string) (*core.PaymentIntent, error) {
	var intent core.PaymentIntent
	if err := s.getDoc(ctx, "PAYMENT#"+paymentID, skIntent, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *DynamoDBStore) UpdatePaymentIntent(ctx context.Context, intent *core.PaymentIntent) error {
	intent.ModifiedAt = core.NowFormatted()
	return s.putDoc(ctx, "PAYMENT#"+intent.PaymentID, skIntent, intent)
}

func (s *DynamoDBStore) FindMerchantAccount(ctx context.Context, merchantID string) (*core.MerchantAccount, error) {
	var account core.MerchantAccount
	if err := s.getDoc(ctx, "MERCHANT#"+merchantID, skMerchant, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *DynamoDBStore) UpdateMerchantAccount(ctx context.Context, account *core.MerchantAccount) error {
	account.ModifiedAt = core.NowFormatted()
	return s.putDoc(ctx, "MERCHANT#"+account.MerchantID, skMerchant, account)
}

func (s *DynamoDBStore) FindBusinessProfile(ctx context.Context, profileID string) (*core.BusinessProfile, error) {
	var profile core.BusinessProfile
	if err := s.getDoc(ctx, "PROFILE#"+profileID, skProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *DynamoDBStore) UpdateBusinessProfile(ctx context.Context, profile *core.BusinessProfile) error {
	profile.ModifiedAt = core.NowFormatted()
	return s.putDoc(ctx, "PROFILE#"+profile.ProfileID, skProfile, profile)
}

func (s *DynamoDBStore) ListConnectorAccounts(ctx context.Context, merchantID string, includeDisabled bool) ([]*core.MerchantConnectorAccount, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "MERCHANT#" + merchantID},
			":sk": &types.AttributeValueMemberS{Value: "MCA#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query connector accounts for %s: %w", merchantID, err)
	}

	var mcas []*core.MerchantConnectorAccount
	for _, item := range result.Items {
		docAttr, ok := item["doc"]
		if !ok {
			continue
		}
		var mca core.MerchantConnectorAccount
		if err := attributevalue.Unmarshal(docAttr, &mca); err != nil {
			return nil, fmt.Errorf("failed to decode connector account doc: %w", err)
		}
		if mca.Disabled && !includeDisabled {
			continue
		}
		mcas = append(mcas, &mca)
	}
	return mcas, nil
}

func (s *DynamoDBStore) PutConnectorAccount(ctx context.Context, mca *core.MerchantConnectorAccount) error {
	return s.putDoc(ctx, "MERCHANT#"+mca.MerchantID, "MCA#"+mca.MerchantConnectorID, mca)
}

// --- TrackerStore ---

func (s *DynamoDBStore) PutProcess(ctx context.Context, process *core.ProcessTracker) error {
	item, err := attributevalue.MarshalMap(processToRecord(process))
	if err != nil {
		return fmt.Errorf("failed to marshal process: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put process: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetProcess(ctx context.Context, id string) (*core.ProcessTracker, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey("PT#"+id, skProcess),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get process %s: %w", id, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var record processRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal process %s: %w", id, err)
	}
	return recordToProcess(&record), nil
}

func (s *DynamoDBStore) MarkProcessStarted(ctx context.Context, id string) error {
	nowMs := time.Now().UnixMilli()
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey("PT#"+id, skProcess),
		UpdateExpression: aws.String("SET #st = :st, updated_at = :now, GSI2PK = :gpk, GSI2SK = :gsk REMOVE GSI1PK, GSI1SK"),
		ExpressionAttributeNames: map[string]string{
			"#st": "process_status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":  &types.AttributeValueMemberS{Value: string(core.ProcessStarted)},
			":now": &types.AttributeValueMemberS{Value: core.NowFormatted()},
			":gpk": &types.AttributeValueMemberS{Value: staleIndexPK},
			":gsk": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", nowMs)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark process %s started: %w", id, err)
	}
	return nil
}

func (s *DynamoDBStore) RetryProcess(ctx context.Context, id string, scheduleTime time.Time, retryCount int) error {
	ms := scheduleTime.UnixMilli()
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey("PT#"+id, skProcess),
		UpdateExpression: aws.String("SET #st = :st, retry_count = :rc, schedule_time_ms = :ms, updated_at = :now, GSI1PK = :gpk, GSI1SK = :gsk REMOVE GSI2PK, GSI2SK"),
		ExpressionAttributeNames: map[string]string{
			"#st": "process_status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":  &types.AttributeValueMemberS{Value: string(core.ProcessRetry)},
			":rc":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", retryCount)},
			":ms":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ms)},
			":now": &types.AttributeValueMemberS{Value: core.NowFormatted()},
			":gpk": &types.AttributeValueMemberS{Value: dueIndexPK},
			":gsk": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ms)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to retry process %s: %w", id, err)
	}
	return nil
}

func (s *DynamoDBStore) FinishProcess(ctx context.Context, id, businessStatus string, retention time.Duration) error {
	ttl := time.Now().Add(retention).Unix()
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey("PT#"+id, skProcess),
		UpdateExpression: aws.String("SET #st = :st, business_status = :bs, updated_at = :now, #ttl = :ttl REMOVE GSI1PK, GSI1SK, GSI2PK, GSI2SK"),
		ExpressionAttributeNames: map[string]string{
			"#st":  "process_status",
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":  &types.AttributeValueMemberS{Value: string(core.ProcessCompleted)},
			":bs":  &types.AttributeValueMemberS{Value: businessStatus},
			":now": &types.AttributeValueMemberS{Value: core.NowFormatted()},
			":ttl": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to finish process %s: %w", id, err)
	}
	return nil
}

func (s *DynamoDBStore) DueProcesses(ctx context.Context, nowMs int64, limit int) ([]*core.ProcessTracker, error) {
	return s.queryProcessIndex(ctx, "GSI1", dueIndexPK, nowMs, limit)
}

func (s *DynamoDBStore) StaleStartedProcesses(ctx context.Context, beforeMs int64, limit int) ([]*core.ProcessTracker, error) {
	return s.queryProcessIndex(ctx, "GSI2", staleIndexPK, beforeMs, limit)
}

func (s *DynamoDBStore) queryProcessIndex(ctx context.Context, index, pk string, cutoffMs int64, limit int) ([]*core.ProcessTracker, error) {
	pkAttr := index + "PK"
	skAttr := index + "SK"

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#pk = :pk AND #sk <= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#pk": pkAttr,
			"#sk": skAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cutoffMs)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", index, err)
	}

	processes := make([]*core.ProcessTracker, 0, len(result.Items))
	for _, item := range result.Items {
		var record processRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal process: %w", err)
		}
		processes = append(processes, recordToProcess(&record))
	}
	return processes, nil
}

// --- plumbing ---

func (s *DynamoDBStore) putDoc(ctx context.Context, pk, sk string, doc any) error {
	docAttr, err := attributevalue.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", pk, sk, err)
	}
	docMap, ok := docAttr.(*types.AttributeValueMemberM)
	if !ok {
		return fmt.Errorf("document %s/%s did not marshal to a map", pk, sk)
	}

	item := map[string]types.AttributeValue{
		"PK":  &types.AttributeValueMemberS{Value: pk},
		"SK":  &types.AttributeValueMemberS{Value: sk},
		"doc": docMap,
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoDBStore) getDoc(ctx context.Context, pk, sk string, out any) error {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return ErrNotFound
	}

	docAttr, ok := result.Item["doc"]
	if !ok {
		return ErrNotFound
	}
	if err := attributevalue.Unmarshal(docAttr, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s doc: %w", pk, sk, err)
	}
	return nil
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Ping verifies connectivity to DynamoDB.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	return err
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (s *DynamoDBStore) Close() error {
	return nil
}
