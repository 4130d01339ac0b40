package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	logx "tgcast/pkg/logx"
)

// Collection names follow the dashboard's existing database.
const (
	collUsers    = "users"
	collSettings = "settings"
	collMenu     = "mainmenubuttons"
	collChannels = "channels"
	collWelcome  = "welcomemessages"
)

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    logx.Logger
}

// Documents keep the dashboard's field names; telegramId is a string there.

type userDoc struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	TelegramID   string              `bson:"telegramId"`
	FirstName    string              `bson:"firstName"`
	LastName     string              `bson:"lastName,omitempty"`
	Username     string              `bson:"username,omitempty"`
	IsBlocked    bool                `bson:"isBlocked"`
	LastActiveAt *time.Time          `bson:"lastActiveAt,omitempty"`
	JoinedFrom   *primitive.ObjectID `bson:"joinedFrom,omitempty"`
	JoinedAt     *time.Time          `bson:"joinedAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt"`
}

func (d userDoc) model() User {
	id, _ := strconv.ParseInt(d.TelegramID, 10, 64)
	u := User{
		ID:           d.ID.Hex(),
		TelegramID:   id,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Username:     d.Username,
		IsBlocked:    d.IsBlocked,
		LastActiveAt: d.LastActiveAt,
		JoinedAt:     d.JoinedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.JoinedFrom != nil {
		u.JoinedFrom = d.JoinedFrom.Hex()
	}
	return u
}

type settingsDoc struct {
	WelcomeMessage         string       `bson:"welcomeMessage"`
	WelcomeMessageMediaURL string       `bson:"welcomeMessageMediaUrl"`
	WelcomeMessageButtons  []LinkButton `bson:"welcomeMessageButtons"`
}

type menuDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Text            string             `bson:"text"`
	Order           int                `bson:"order"`
	Active          bool               `bson:"active"`
	ResponseMessage string             `bson:"responseMessage"`
	MediaURL        string             `bson:"mediaUrl"`
	ResponseButtons []LinkButton       `bson:"responseButtons"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d menuDoc) model() MenuButton {
	b := MenuButton{
		ID:              d.ID.Hex(),
		Text:            d.Text,
		Order:           d.Order,
		Active:          d.Active,
		ResponseMessage: d.ResponseMessage,
		MediaURL:        d.MediaURL,
		ResponseButtons: d.ResponseButtons,
		CreatedAt:       d.CreatedAt,
	}
	if b.ResponseButtons == nil {
		b.ResponseButtons = []LinkButton{}
	}
	return b
}

type channelDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ChatID    string             `bson:"chatId"`
	Name      string             `bson:"name"`
	Active    bool               `bson:"active"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d channelDoc) model() Channel {
	return Channel{ID: d.ID.Hex(), ChatID: d.ChatID, Name: d.Name, Active: d.Active, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type welcomeDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ChannelID   primitive.ObjectID `bson:"channelId"`
	MessageText string             `bson:"messageText"`
	ButtonText  string             `bson:"buttonText,omitempty"`
	ButtonURL   string             `bson:"buttonUrl,omitempty"`
	MediaURL    string             `bson:"mediaUrl,omitempty"`
	DelaySec    int                `bson:"delaySec"`
	Enabled     bool               `bson:"enabled"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d welcomeDoc) model() WelcomeMessage {
	return WelcomeMessage{
		ID:          d.ID.Hex(),
		ChannelID:   d.ChannelID.Hex(),
		MessageText: d.MessageText,
		ButtonText:  d.ButtonText,
		ButtonURL:   d.ButtonURL,
		MediaURL:    d.MediaURL,
		DelaySec:    d.DelaySec,
		Enabled:     d.Enabled,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func openMongo(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	name := cfg.Database
	if cs := connectionDatabase(cfg.DSN); cs != "" {
		name = cs
	}
	if name == "" {
		name = "tgcast"
	}
	st := &mongoStore{client: client, db: client.Database(name), log: log}
	if err := st.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", "mongo"), logx.String("database", name))
	return st, nil
}

// connectionDatabase extracts the database path segment of a mongodb URI.
func connectionDatabase(uri string) string {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return ""
	}
	db := rest[i+1:]
	if j := strings.IndexByte(db, '?'); j >= 0 {
		db = db[:j]
	}
	return db
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{collUsers, mongo.IndexModel{Keys: bson.D{{Key: "telegramId", Value: 1}}, Options: unique}},
		{collUsers, mongo.IndexModel{Keys: bson.D{{Key: "isBlocked", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{collMenu, mongo.IndexModel{Keys: bson.D{{Key: "text", Value: 1}}}},
		{collChannels, mongo.IndexModel{Keys: bson.D{{Key: "chatId", Value: 1}}, Options: unique}},
		{collWelcome, mongo.IndexModel{Keys: bson.D{{Key: "channelId", Value: 1}}, Options: unique}},
	}
	for _, sp := range specs {
		if _, err := s.db.Collection(sp.coll).Indexes().CreateOne(ctx, sp.model); err != nil {
			return err
		}
	}
	return nil
}

func (s *mongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(ErrConflict, err)
	default:
		return err
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

// Users

func (s *mongoStore) UpsertUser(ctx context.Context, telegramID int64, p UserPatch) (User, error) {
	if telegramID == 0 {
		return User{}, ErrInvalid
	}
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	if p.FirstName != nil {
		set["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		set["lastName"] = *p.LastName
	}
	if p.Username != nil {
		set["username"] = *p.Username
	}
	if p.IsBlocked != nil {
		set["isBlocked"] = *p.IsBlocked
	}
	if p.LastActiveAt != nil {
		set["lastActiveAt"] = p.LastActiveAt.UTC()
	}
	if p.JoinedFrom != nil {
		if oid, err := primitive.ObjectIDFromHex(*p.JoinedFrom); err == nil {
			set["joinedFrom"] = oid
		}
	}
	if p.JoinedAt != nil {
		set["joinedAt"] = p.JoinedAt.UTC()
	}
	onInsert := bson.M{"createdAt": now}
	if p.IsBlocked == nil {
		onInsert["isBlocked"] = false
	}
	if p.FirstName == nil {
		onInsert["firstName"] = ""
	}

	var doc userDoc
	err := s.db.Collection(collUsers).FindOneAndUpdate(ctx,
		bson.M{"telegramId": strconv.FormatInt(telegramID, 10)},
		bson.M{"$set": set, "$setOnInsert": onInsert},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return User{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) SetBlocked(ctx context.Context, telegramID int64, blocked bool) error {
	now := time.Now().UTC()
	set := bson.M{"isBlocked": blocked, "updatedAt": now}
	if !blocked {
		set["lastActiveAt"] = now
	}
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"telegramId": strconv.FormatInt(telegramID, 10)},
		bson.M{"$set": set})
	return mongoErr(err)
}

func (s *mongoStore) GetUser(ctx context.Context, telegramID int64) (User, error) {
	var doc userDoc
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"telegramId": strconv.FormatInt(telegramID, 10)}).Decode(&doc)
	if err != nil {
		return User{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) ListUsers(ctx context.Context) ([]User, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	defer cur.Close(ctx)
	out := make([]User, 0, 64)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.model())
	}
	return out, cur.Err()
}

// telegramIDPattern matches non-zero decimal ids of at most 19 digits.
const telegramIDPattern = `^-?[1-9][0-9]{0,18}$`

func recipientFilter() bson.M {
	return bson.M{
		"isBlocked":  bson.M{"$ne": true},
		"telegramId": bson.M{"$type": "string", "$regex": telegramIDPattern},
	}
}

// recipientSink hands parsed recipients to fn until limit of them were
// delivered. Skipped ids do not count.
type recipientSink struct {
	limit int
	n     int
	fn    func(Recipient) error
	log   logx.Logger
}

func (r *recipientSink) push(raw string) (done bool, err error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		r.log.Warn("skipping user with bad telegramId", logx.String("telegram_id", raw))
		return false, nil
	}
	if err := r.fn(Recipient{TelegramID: id}); err != nil {
		return true, err
	}
	r.n++
	return r.limit > 0 && r.n >= r.limit, nil
}

// StreamRecipients iterates a server cursor; the batch size bounds what
// the driver holds in memory. limit counts delivered recipients.
func (s *mongoStore) StreamRecipients(ctx context.Context, limit, pageSize int, fn func(Recipient) error) error {
	if pageSize <= 0 {
		pageSize = 500
	}
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"telegramId": 1}).
		SetBatchSize(int32(pageSize))
	cur, err := s.db.Collection(collUsers).Find(ctx, recipientFilter(), opts)
	if err != nil {
		return mongoErr(err)
	}
	defer cur.Close(ctx)
	sink := &recipientSink{limit: limit, fn: fn, log: s.log}
	for cur.Next(ctx) {
		var doc struct {
			TelegramID string `bson:"telegramId"`
		}
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		done, err := sink.push(doc.TelegramID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return cur.Err()
}

// Settings

func (s *mongoStore) GetSettings(ctx context.Context) (Settings, error) {
	var doc settingsDoc
	if err := s.db.Collection(collSettings).FindOne(ctx, bson.M{}).Decode(&doc); err != nil {
		return Settings{}, mongoErr(err)
	}
	st := Settings(doc)
	if st.WelcomeMessageButtons == nil {
		st.WelcomeMessageButtons = []LinkButton{}
	}
	return st, nil
}

func (s *mongoStore) SaveSettings(ctx context.Context, st Settings) error {
	buttons := st.WelcomeMessageButtons
	if buttons == nil {
		buttons = []LinkButton{}
	}
	_, err := s.db.Collection(collSettings).UpdateOne(ctx, bson.M{},
		bson.M{"$set": bson.M{
			"welcomeMessage":         st.WelcomeMessage,
			"welcomeMessageMediaUrl": st.WelcomeMessageMediaURL,
			"welcomeMessageButtons":  buttons,
		}},
		options.Update().SetUpsert(true))
	return mongoErr(err)
}

// Menu buttons

func (s *mongoStore) menuFind(ctx context.Context, filter bson.M) ([]MenuButton, error) {
	cur, err := s.db.Collection(collMenu).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	defer cur.Close(ctx)
	out := make([]MenuButton, 0, 8)
	for cur.Next(ctx) {
		var doc menuDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.model())
	}
	return out, cur.Err()
}

func (s *mongoStore) ListMenuButtons(ctx context.Context, activeOnly bool) ([]MenuButton, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return s.menuFind(ctx, filter)
}

func (s *mongoStore) FindActiveMenuButton(ctx context.Context, text string) (MenuButton, error) {
	var doc menuDoc
	err := s.db.Collection(collMenu).FindOne(ctx, bson.M{"text": text, "active": true},
		options.FindOne().SetSort(bson.D{{Key: "order", Value: 1}})).Decode(&doc)
	if err != nil {
		return MenuButton{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) CreateMenuButton(ctx context.Context, b MenuButton) (MenuButton, error) {
	if strings.TrimSpace(b.Text) == "" {
		return MenuButton{}, ErrInvalid
	}
	doc := menuDoc{
		Text:            b.Text,
		Order:           b.Order,
		Active:          b.Active,
		ResponseMessage: b.ResponseMessage,
		MediaURL:        b.MediaURL,
		ResponseButtons: b.ResponseButtons,
		CreatedAt:       time.Now().UTC(),
	}
	if doc.ResponseButtons == nil {
		doc.ResponseButtons = []LinkButton{}
	}
	res, err := s.db.Collection(collMenu).InsertOne(ctx, doc)
	if err != nil {
		return MenuButton{}, mongoErr(err)
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.model(), nil
}

func (s *mongoStore) UpdateMenuButton(ctx context.Context, id string, p MenuButtonPatch) (MenuButton, error) {
	oid, err := objectID(id)
	if err != nil {
		return MenuButton{}, err
	}
	set := bson.M{}
	if p.Text != nil {
		set["text"] = *p.Text
	}
	if p.Order != nil {
		set["order"] = *p.Order
	}
	if p.Active != nil {
		set["active"] = *p.Active
	}
	if p.ResponseMessage != nil {
		set["responseMessage"] = *p.ResponseMessage
	}
	if p.MediaURL != nil {
		set["mediaUrl"] = *p.MediaURL
	}
	if p.ResponseButtons != nil {
		set["responseButtons"] = *p.ResponseButtons
	}
	var doc menuDoc
	if len(set) == 0 {
		err = s.db.Collection(collMenu).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	} else {
		err = s.db.Collection(collMenu).FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, returnAfter).Decode(&doc)
	}
	if err != nil {
		return MenuButton{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) deleteByID(ctx context.Context, coll, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mongoErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) DeleteMenuButton(ctx context.Context, id string) error {
	return s.deleteByID(ctx, collMenu, id)
}

// toggle flips a boolean field with an aggregation-pipeline update so the
// read and write are one atomic operation.
func (s *mongoStore) toggle(ctx context.Context, coll, id, field string, out any, touch bool) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{field: bson.M{"$not": bson.A{"$" + field}}}
	if touch {
		set["updatedAt"] = time.Now().UTC()
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	return mongoErr(s.db.Collection(coll).FindOneAndUpdate(ctx, bson.M{"_id": oid}, pipeline, returnAfter).Decode(out))
}

func (s *mongoStore) ToggleMenuButton(ctx context.Context, id string) (MenuButton, error) {
	var doc menuDoc
	if err := s.toggle(ctx, collMenu, id, "active", &doc, false); err != nil {
		return MenuButton{}, err
	}
	return doc.model(), nil
}

func (s *mongoStore) ReorderMenuButtons(ctx context.Context, updates []OrderUpdate) error {
	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		oid, err := objectID(u.ID)
		if err != nil {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetUpdate(bson.M{"$set": bson.M{"order": u.Order}}))
	}
	if len(models) == 0 {
		return nil
	}
	_, err := s.db.Collection(collMenu).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return mongoErr(err)
}

// Channels

func (s *mongoStore) ListChannels(ctx context.Context) ([]Channel, error) {
	cur, err := s.db.Collection(collChannels).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	defer cur.Close(ctx)
	out := make([]Channel, 0, 8)
	for cur.Next(ctx) {
		var doc channelDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.model())
	}
	return out, cur.Err()
}

func (s *mongoStore) CreateChannel(ctx context.Context, c Channel) (Channel, error) {
	if strings.TrimSpace(c.ChatID) == "" || strings.TrimSpace(c.Name) == "" {
		return Channel{}, ErrInvalid
	}
	now := time.Now().UTC()
	doc := channelDoc{ChatID: c.ChatID, Name: c.Name, Active: c.Active, CreatedAt: now, UpdatedAt: now}
	res, err := s.db.Collection(collChannels).InsertOne(ctx, doc)
	if err != nil {
		return Channel{}, mongoErr(err)
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.model(), nil
}

func (s *mongoStore) ToggleChannel(ctx context.Context, id string) (Channel, error) {
	var doc channelDoc
	if err := s.toggle(ctx, collChannels, id, "active", &doc, true); err != nil {
		return Channel{}, err
	}
	return doc.model(), nil
}

func (s *mongoStore) DeleteChannel(ctx context.Context, id string) error {
	return s.deleteByID(ctx, collChannels, id)
}

func (s *mongoStore) FindChannelByChatID(ctx context.Context, chatID string) (Channel, error) {
	var doc channelDoc
	if err := s.db.Collection(collChannels).FindOne(ctx, bson.M{"chatId": chatID}).Decode(&doc); err != nil {
		return Channel{}, mongoErr(err)
	}
	return doc.model(), nil
}

// Welcome messages

func (s *mongoStore) ListWelcomeMessages(ctx context.Context) ([]WelcomeMessage, error) {
	cur, err := s.db.Collection(collWelcome).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	defer cur.Close(ctx)
	out := make([]WelcomeMessage, 0, 8)
	for cur.Next(ctx) {
		var doc welcomeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.model())
	}
	return out, cur.Err()
}

func (s *mongoStore) FindWelcomeMessage(ctx context.Context, channelID string) (WelcomeMessage, error) {
	oid, err := objectID(channelID)
	if err != nil {
		return WelcomeMessage{}, err
	}
	var doc welcomeDoc
	if err := s.db.Collection(collWelcome).FindOne(ctx, bson.M{"channelId": oid}).Decode(&doc); err != nil {
		return WelcomeMessage{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) UpsertWelcomeMessage(ctx context.Context, w WelcomeMessage) (WelcomeMessage, error) {
	if strings.TrimSpace(w.MessageText) == "" {
		return WelcomeMessage{}, ErrInvalid
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(w.ChannelID))
	if err != nil {
		return WelcomeMessage{}, ErrInvalid
	}
	if w.DelaySec < 0 {
		w.DelaySec = 0
	}
	now := time.Now().UTC()
	var doc welcomeDoc
	err = s.db.Collection(collWelcome).FindOneAndUpdate(ctx,
		bson.M{"channelId": oid},
		bson.M{
			"$set": bson.M{
				"messageText": w.MessageText,
				"buttonText":  w.ButtonText,
				"buttonUrl":   w.ButtonURL,
				"mediaUrl":    w.MediaURL,
				"delaySec":    w.DelaySec,
				"enabled":     w.Enabled,
				"updatedAt":   now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return WelcomeMessage{}, mongoErr(err)
	}
	return doc.model(), nil
}

func (s *mongoStore) ToggleWelcomeMessage(ctx context.Context, id string) (WelcomeMessage, error) {
	var doc welcomeDoc
	if err := s.toggle(ctx, collWelcome, id, "enabled", &doc, true); err != nil {
		return WelcomeMessage{}, err
	}
	return doc.model(), nil
}
