package core

import "growcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Stage              = domain.Stage
	GrowthPhase        = domain.GrowthPhase
	DayCycle           = domain.DayCycle
	Severity           = domain.Severity
	Base               = domain.Base
	Date               = domain.Date
	Growspace          = domain.Growspace
	Plant              = domain.Plant
	ScheduleEntry      = domain.ScheduleEntry
	GridPosition       = domain.GridPosition
	HarvestRecord      = domain.HarvestRecord
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityGrowspace    = domain.EntityGrowspace
	EntityPlant        = domain.EntityPlant
	EntityNotification = domain.EntityNotification
)

const (
	StageSeedling = domain.StageSeedling
	StageClone    = domain.StageClone
	StageMother   = domain.StageMother
	StageVeg      = domain.StageVeg
	StageFlower   = domain.StageFlower
	StageDry      = domain.StageDry
	StageCure     = domain.StageCure
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
