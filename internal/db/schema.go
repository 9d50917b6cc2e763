package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PROCESSING_TASK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS processing_task SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS task_type ON processing_task TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON processing_task TYPE string DEFAULT "pending";
    DEFINE FIELD IF NOT EXISTS project_id ON processing_task TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON processing_task TYPE string;
    DEFINE FIELD IF NOT EXISTS progress_percentage ON processing_task TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS current_step ON processing_task TYPE string DEFAULT "";
    -- total_steps of 0 means unknown
    DEFINE FIELD IF NOT EXISTS total_steps ON processing_task TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS completed_steps ON processing_task TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS estimated_duration_seconds ON processing_task TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS elapsed_time_seconds ON processing_task TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS remaining_time_seconds ON processing_task TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS result_data ON processing_task TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error_message ON processing_task TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS cancel_requested ON processing_task TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS started_at ON processing_task TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON processing_task TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created_at ON processing_task TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON processing_task TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS task_project ON processing_task FIELDS project_id;
    DEFINE INDEX IF NOT EXISTS task_project_type ON processing_task FIELDS project_id, task_type;
    DEFINE INDEX IF NOT EXISTS task_status ON processing_task FIELDS status;

    -- ==========================================================================
    -- COVERAGE_REQUIREMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS coverage_requirement SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON coverage_requirement TYPE string;
    DEFINE FIELD IF NOT EXISTS lens_type ON coverage_requirement TYPE string;
    DEFINE FIELD IF NOT EXISTS is_required ON coverage_requirement TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS min_documents ON coverage_requirement TYPE int DEFAULT 1;
    DEFINE FIELD IF NOT EXISTS created_at ON coverage_requirement TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON coverage_requirement TYPE datetime DEFAULT time::now();

    -- One requirement per (project, lens)
    DEFINE INDEX IF NOT EXISTS requirement_unique ON coverage_requirement FIELDS project_id, lens_type UNIQUE;

    -- ==========================================================================
    -- COVERAGE_STATUS TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS coverage_status SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON coverage_status TYPE string;
    DEFINE FIELD IF NOT EXISTS lens_type ON coverage_status TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON coverage_status TYPE string;
    DEFINE FIELD IF NOT EXISTS document_count ON coverage_status TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS chunk_count ON coverage_status TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS coverage_percentage ON coverage_status TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS missing_topics ON coverage_status TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS last_checked ON coverage_status TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS status_project ON coverage_status FIELDS project_id;

    -- ==========================================================================
    -- DOCUMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS doc_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS source_type ON document TYPE string DEFAULT "upload";
    DEFINE FIELD IF NOT EXISTS source_url ON document TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS raw_text ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS file_type ON document TYPE string DEFAULT "txt";
    DEFINE FIELD IF NOT EXISTS created_at ON document TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_project ON document FIELDS project_id;
    DEFINE INDEX IF NOT EXISTS document_doc_id ON document FIELDS doc_id UNIQUE;

    -- ==========================================================================
    -- DOCUMENT_CHUNK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS document_id ON document_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS project_id ON document_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS chunk_index ON document_chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS text ON document_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS lens_type ON document_chunk TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS confidence_score ON document_chunk TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS importance_score ON document_chunk TYPE float DEFAULT 0.5;
    DEFINE FIELD IF NOT EXISTS tokens ON document_chunk TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS embedding ON document_chunk TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS is_generated ON document_chunk TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS generation_status ON document_chunk TYPE string DEFAULT "not_applicable";
    DEFINE FIELD IF NOT EXISTS metadata ON document_chunk TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON document_chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_project ON document_chunk FIELDS project_id;
    DEFINE INDEX IF NOT EXISTS chunk_document ON document_chunk FIELDS document_id;
    DEFINE INDEX IF NOT EXISTS chunk_lens ON document_chunk FIELDS project_id, lens_type;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON document_chunk FIELDS embedding HNSW DIMENSION 384 DIST COSINE TYPE F32;
    DEFINE ANALYZER IF NOT EXISTS chunk_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS chunk_text_ft ON document_chunk FIELDS text FULLTEXT ANALYZER chunk_analyzer BM25;

    -- ==========================================================================
    -- GRAPH_ENTITY TABLE (knowledge graph mirror)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS graph_entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON graph_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON graph_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON graph_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON graph_entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS lens_type ON graph_entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON graph_entity TYPE datetime DEFAULT time::now();

    -- One node per (project, name, type)
    DEFINE INDEX IF NOT EXISTS entity_unique ON graph_entity FIELDS project_id, name, type UNIQUE;
    DEFINE INDEX IF NOT EXISTS entity_project ON graph_entity FIELDS project_id;

    -- ==========================================================================
    -- GRAPH RELATION (entity -> entity edges)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS relates TYPE RELATION IN graph_entity OUT graph_entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS rel_type ON relates TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON relates TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON relates VALUE <string>string::concat(<string>in, rel_type, <string>out);
    DEFINE INDEX IF NOT EXISTS unique_relation ON relates FIELDS unique_key UNIQUE;
`
