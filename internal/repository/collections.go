package repository

// コレクション名。永続化された契約のため変更しないこと。
const (
	CollectionPostings         = "li-jd-postings"
	CollectionPostingsArchived = "li-jd-postings-archived"
	CollectionSummaries        = "jd-postings-summary"
	CollectionOutreachEvents   = "outreach-events"
	CollectionProfiles         = "li-profile"
	CollectionScanHTML         = "job-scan-html"
)

// 求人ドキュメントのフィールド名
const (
	fieldUUID             = "uuid"
	fieldTitle            = "title"
	fieldDepartment       = "department"
	fieldSubtitle         = "subtitle"
	fieldEmployer         = "employer"
	fieldDescription      = "description"
	fieldLocationTier     = "location_tier"
	fieldWorkType         = "work_type"
	fieldJDURL            = "jd_url"
	fieldDataURL          = "data_url"
	fieldPromoterName     = "promoter_name"
	fieldPromoterLink     = "promoter_link"
	fieldProximity        = "proximity"
	fieldPromoterHeadline = "promoter_headline"
	fieldStatus           = "status"
	fieldFreshness        = "freshness"
	fieldFreshMin         = "fresh_min"
	fieldPostTime         = "post_time"
)

// サマリードキュメントのフィールド名
const (
	fieldCompanyName = "companyName"
	fieldRoleTitle   = "roleTitle"
	fieldDomain      = "domain"
	fieldLevel       = "level"
	fieldIsPathrise  = "is_pathrise"
	fieldIsPro       = "is_pro"
	fieldNotes       = "notes"
	fieldJDCopy      = "jd_copy"
	fieldReqsCopy    = "reqs_copy"
	fieldCopyRef     = "jd_copy_ref"
	fieldHTMLRef     = "jd_html_ref"
	fieldTimestamp   = "timestamp"
)

// サテライト・スキャン・アウトリーチ・プロフィールのフィールド名
const (
	fieldSatelliteCopy = "copy"
	fieldSatelliteHTML = "html"
	fieldScanJobID     = "job-id"
	fieldScanHTML      = "html"

	fieldApplicationID = "application_id"
	fieldTarget        = "target"
	fieldType          = "type"
	fieldMessage       = "message"
	fieldNote          = "note"
	fieldEmail         = "email"
)
