package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/validation"

	"gorm.io/gorm"
)

// ErrGlossaryNotFound 词汇表不存在
var ErrGlossaryNotFound = errors.New("glossary not found")

// GlossaryService 词汇表及其词条
type GlossaryService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGlossaryService(db *gorm.DB, log *logger.Logger) *GlossaryService {
	return &GlossaryService{db: db, log: log}
}

func validateGlossary(g *model.Glossary) error {
	var errs validation.Errors
	if strings.TrimSpace(g.Name) == "" {
		errs.Add("name", "can't be blank")
	}
	return errs.Err()
}

func (s *GlossaryService) Create(ctx context.Context, g *model.Glossary) error {
	if err := validateGlossary(g); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create glossary: %w", err)
	}
	return nil
}

// Get 获取词汇表，同时加载词条与组词方案
func (s *GlossaryService) Get(ctx context.Context, userID, id uint) (*model.Glossary, error) {
	var g model.Glossary
	err := s.db.WithContext(ctx).
		Preload("Vocabularies").
		Preload("PromptingPlan").
		Where("id = ? AND user_id = ?", id, userID).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGlossaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get glossary %d: %w", id, err)
	}
	return &g, nil
}

func (s *GlossaryService) List(ctx context.Context, userID uint) ([]model.Glossary, error) {
	var list []model.Glossary
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list glossaries: %w", err)
	}
	return list, nil
}

func (s *GlossaryService) Rename(ctx context.Context, userID, id uint, name string) (*model.Glossary, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	g.Name = name
	if err := validateGlossary(g); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(g).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("rename glossary %d: %w", id, err)
	}
	return g, nil
}

// AddVocabulary 添加词条
func (s *GlossaryService) AddVocabulary(ctx context.Context, userID, glossaryID uint, v *model.Vocabulary) error {
	if _, err := s.Get(ctx, userID, glossaryID); err != nil {
		return err
	}
	if strings.TrimSpace(v.Term) == "" {
		var errs validation.Errors
		errs.Add("term", "can't be blank")
		return errs
	}
	v.GlossaryID = glossaryID
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("add vocabulary: %w", err)
	}
	return nil
}

// SetPromptingPlan 设置组词方案，已存在时覆盖
func (s *GlossaryService) SetPromptingPlan(ctx context.Context, userID, glossaryID uint, template string) (*model.PromptingPlan, error) {
	g, err := s.Get(ctx, userID, glossaryID)
	if err != nil {
		return nil, err
	}
	plan := g.PromptingPlan
	if plan == nil {
		plan = &model.PromptingPlan{GlossaryID: glossaryID}
	}
	plan.Template = template
	if err := s.db.WithContext(ctx).Save(plan).Error; err != nil {
		return nil, fmt.Errorf("save prompting plan: %w", err)
	}
	return plan, nil
}

// Delete 删除词汇表，词条与组词方案一并删除
func (s *GlossaryService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("glossary_id = ?", id).Delete(&model.Vocabulary{}).Error; err != nil {
			return err
		}
		if err := tx.Where("glossary_id = ?", id).Delete(&model.PromptingPlan{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Glossary{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete glossary %d: %w", id, err)
	}
	s.log.Infof("词汇表已删除: GlossaryID=%d", id)
	return nil
}
